package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// Aggregate types recorded in the lending event log.
const (
	AggregateItem    = "item"
	AggregateLoan    = "loan"
	AggregatePayment = "payment"
)

// Event is an append-only record of a state change, written in the same
// transaction as the change itself. Version is assigned by the store.
type Event struct {
	AggregateID   uuid.UUID           `json:"aggregate_id"`
	AggregateType string              `json:"aggregate_type"`
	EventType     string              `json:"event_type"`
	Payload       jsoniter.RawMessage `json:"payload"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
}

// NewEvent encodes payload into an unversioned event.
func NewEvent(aggregateID uuid.UUID, aggregateType, eventType string, payload any) (Event, error) {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       data,
	}, nil
}

// NewID returns a time-ordered identifier, so ascending ids follow creation order.
func NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
