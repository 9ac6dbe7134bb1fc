package domain

import "time"

// EventKind tags a financial event notification from the ledger service.
type EventKind string

const (
	EventCreated EventKind = "CREATED"
	EventUpdated EventKind = "UPDATED"
	EventDeleted EventKind = "DELETED"
)

// Event is an immutable fact about a transaction, delivered at-least-once
// and possibly out of order by the upstream transport. The engine never
// mutates events.
//
// Amount is a pointer so an absent field can be told apart from a
// legitimate zero-amount transaction.
type Event struct {
	EventID    string    `json:"event_id"`
	AccountID  string    `json:"account_id"`
	Amount     *float64  `json:"amount"`
	Category   string    `json:"category,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       EventKind `json:"kind"`
	Source     string    `json:"source,omitempty"`
}

// Validate reports whether the event carries every required field.
// Malformed events are acknowledged without mutation, never retried.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return &ErrValidation{Field: "event_id", Message: "required"}
	}
	if e.AccountID == "" {
		return &ErrValidation{Field: "account_id", Message: "required"}
	}
	if e.Amount == nil {
		return &ErrValidation{Field: "amount", Message: "required"}
	}
	switch e.Kind {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return &ErrValidation{Field: "kind", Message: "must be CREATED, UPDATED or DELETED"}
	}
	return nil
}
