package logger

// Logger exposes leveled logging to core components without binding them
// to a concrete backend. infra/logger provides the zerolog adapter.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
