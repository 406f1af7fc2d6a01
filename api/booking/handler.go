// Package booking exposes the order fulfillment surface over HTTP: the
// payment-provider webhook and the status endpoint client apps poll.
package booking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shotfleet/shotfleet/core/fulfillment"
	"github.com/shotfleet/shotfleet/core/model"
)

type statusResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	ProjectID string `json:"project_id,omitempty"`
}

// NewWebhookHandler returns the handler for POST /api/booking/webhook.
// The payment provider calls it, possibly more than once per session;
// replays return the same response as the first delivery.
func NewWebhookHandler(m *fulfillment.Machine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			SessionID string `json:"session_id"`
			EventType string `json:"event_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if body.SessionID == "" {
			http.Error(w, "session_id is required", http.StatusBadRequest)
			return
		}
		var st fulfillment.Status
		var err error
		switch body.EventType {
		case "", "payment.confirmed":
			st, err = m.OnPaymentConfirmed(r.Context(), body.SessionID)
		case "payment.cancelled":
			st, err = m.Cancel(r.Context(), body.SessionID)
		default:
			http.Error(w, "unknown event_type", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeStatus(w, body.SessionID, st)
	})
}

// NewStatusHandler returns the handler for GET /api/booking/status.
func NewStatusHandler(m *fulfillment.Machine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			http.Error(w, "session_id is required", http.StatusBadRequest)
			return
		}
		st, err := m.GetStatus(r.Context(), sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeStatus(w, sessionID, st)
	})
}

func writeStatus(w http.ResponseWriter, sessionID string, st fulfillment.Status) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		SessionID: sessionID,
		Status:    st.Status.String(),
		ProjectID: st.ProjectID,
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
