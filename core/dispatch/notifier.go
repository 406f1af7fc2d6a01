package dispatch

import "time"

// Offer is the assignment proposal pushed to a technician's app.
type Offer struct {
	ProjectID string    `json:"project_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Address   string    `json:"address"`
}

// Notifier delivers offers to technicians and collects their answers.
// infra/mqtt provides the production implementation; delivery mechanics
// and message content beyond the Offer fields are outside the engine.
type Notifier interface {
	// SendOffer publishes the offer and returns an offer ID used to
	// correlate the answer.
	SendOffer(technicianID string, offer Offer) (string, error)
	// WaitForAnswer blocks until the technician answers the offer or the
	// timeout elapses. Returns true when accepted.
	WaitForAnswer(offerID string, timeout time.Duration) (bool, error)
}
