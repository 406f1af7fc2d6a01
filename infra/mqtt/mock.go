package mqtt

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shotfleet/shotfleet/core/dispatch"
)

// MockNotifier is a Notifier used in tests. Answers are configured per
// technician; unconfigured technicians accept.
type MockNotifier struct {
	Offers   map[string]dispatch.Offer
	FailIDs  map[string]bool
	Declines map[string]bool
	mu       sync.Mutex
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		Offers:   make(map[string]dispatch.Offer),
		FailIDs:  make(map[string]bool),
		Declines: make(map[string]bool),
	}
}

// SendOffer records the offer or fails if configured to.
func (m *MockNotifier) SendOffer(technicianID string, offer dispatch.Offer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[technicianID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Offers[technicianID] = offer
	return "offer-" + technicianID, nil
}

// WaitForAnswer returns the configured answer immediately.
func (m *MockNotifier) WaitForAnswer(offerID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	techID, ok := strings.CutPrefix(offerID, "offer-")
	if !ok {
		return false, fmt.Errorf("unknown offer %s", offerID)
	}
	return !m.Declines[techID], nil
}
