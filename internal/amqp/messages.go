package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finanzas/internal/core"
)

type EventKind string

const (
	EventCreated EventKind = "created"
	EventDeleted EventKind = "deleted"
)

// TransactionEvent announces a ledger change. Consumers re-read the
// transaction by ID for created events; deleted events carry enough to
// locate the mirrored row.
type TransactionEvent struct {
	Kind          EventKind `json:"kind"`
	TransactionID string    `json:"transactionId"`
	Type          string    `json:"type"`
	PeriodKey     string    `json:"periodKey"`
	AmountCents   int64     `json:"amountCents"`
	Recurring     bool      `json:"recurring,omitempty"`
	Carryover     bool      `json:"carryover,omitempty"`
	Actor         string    `json:"actor"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent builds an event for t stamped with at.
func NewTransactionEvent(kind EventKind, t core.Transaction, actor core.Actor, at time.Time) *TransactionEvent {
	return &TransactionEvent{
		Kind:          kind,
		TransactionID: t.ID,
		Type:          string(t.Type),
		PeriodKey:     t.Period().Key(),
		AmountCents:   t.Amount.Cents,
		Recurring:     t.IsRecurring,
		Carryover:     t.IsCarryover,
		Actor:         actor.String(),
		Timestamp:     at,
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var evt TransactionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	if evt.TransactionID == "" {
		return nil, fmt.Errorf("event without transaction id")
	}
	switch evt.Kind {
	case EventCreated, EventDeleted:
	default:
		return nil, fmt.Errorf("unknown event kind %q", evt.Kind)
	}
	return &evt, nil
}
