package orders

import "time"

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending means the invoice exists but payment has not been observed.
	StatusPending Status = "pending"
	// StatusPaid means the gateway reported the invoice as paid.
	StatusPaid Status = "paid"
	// StatusInvalid means the gateway reported the invoice as expired or otherwise unusable.
	StatusInvalid Status = "invalid"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusInvalid
}

// CanTransition reports whether an order may move from one status to another.
// Transitions are one-directional: only pending orders change, and re-applying
// the current status is a permitted no-op.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return from == StatusPending && to.Terminal()
}

// Order is the durable record of a committed purchase attempt. Everything
// except Status is immutable after insert.
type Order struct {
	ID        string
	BuyerID   int64
	BuyerName string
	Game      string
	Pack      string
	Price     float64
	Asset     string
	Nickname  string
	CreatedAt time.Time
	Status    Status
	InvoiceID int64
	PayURL    string
}
