package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidEvent   = errors.New("invalid_event")
)

// Recorder appends lifecycle events to the outbox. Record must be called with
// the transaction that performs the state change so the event and the
// mutation commit or roll back together.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, event Event) error
}

// Event is the write-side view of a lifecycle event.
type Event struct {
	Type      EventType
	Payload   map[string]any
	DedupeKey string
}
