package model

import "time"

// OrderStatus tracks a booking request from checkout to fulfillment.
type OrderStatus int

const (
	OrderPendingPayment OrderStatus = iota
	OrderPaymentCompleted
	OrderProjectCreated
	OrderExpired
	OrderCancelled
)

// String returns a human-readable representation of the order status.
func (s OrderStatus) String() string {
	switch s {
	case OrderPendingPayment:
		return "PENDING_PAYMENT"
	case OrderPaymentCompleted:
		return "PAYMENT_COMPLETED"
	case OrderProjectCreated:
		return "PROJECT_CREATED"
	case OrderExpired:
		return "EXPIRED"
	case OrderCancelled:
		return "CANCELLED"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderProjectCreated || s == OrderExpired || s == OrderCancelled
}

// CanTransition reports whether the forward-only order state graph
// allows moving from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderPendingPayment:
		return next == OrderPaymentCompleted || next == OrderExpired || next == OrderCancelled
	case OrderPaymentCompleted:
		return next == OrderProjectCreated
	default:
		return false
	}
}

// Order is a payment-bound booking request that becomes a Project once
// the payment processor confirms the session.
type Order struct {
	ID             string
	OrganizationID string
	Status         OrderStatus

	// ExternalSessionID is the idempotency key issued by the payment
	// processor. Webhook replays are deduplicated on it.
	ExternalSessionID string

	// ResultingProjectID is set exactly once, when fulfillment creates
	// the project.
	ResultingProjectID string

	CustomerEmail   string
	ScheduledTime   time.Time
	DurationMinutes int
	Location        LatLng
	Address         string
	RequiredSkills  []string

	CreatedAt time.Time
}
