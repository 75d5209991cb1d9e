// Package eventlogger records the household activity log: who registered,
// who logged a chore, who paid whom. Events are saved asynchronously by a
// Worker and may fan out to several sinks.
package eventlogger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Activity types.
const (
	TypeUserRegistered     = "user.registered"
	TypeCategoryCreated    = "category.created"
	TypeEventRecorded      = "event.recorded"
	TypeExpenseRecorded    = "expense.recorded"
	TypeSettlementRecorded = "settlement.recorded"
	TypeItemCreated        = "item.created"
	TypeStockSet           = "stock.set"
	TypeSessionStarted     = "session.started"
	TypeSessionEnded       = "session.ended"
)

type Event struct {
	ID        uuid.UUID         `json:"id,omitempty"`
	Type      string            `json:"event_type,omitempty"`
	Data      json.RawMessage   `json:"event_data,omitempty"`
	Metadata  map[string]string `json:"event_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type EventOption func(*Event)

func WithType(eventType string) EventOption {
	return func(e *Event) {
		e.Type = eventType
	}
}

// WithData stores data as JSON. Values that can't be marshalled are
// dropped.
func WithData(data any) EventOption {
	return func(e *Event) {
		raw, err := json.Marshal(data)
		if err != nil {
			return
		}
		e.Data = raw
	}
}

func WithMetadata(metadata map[string]string) EventOption {
	return func(e *Event) {
		for k, v := range metadata {
			e.Metadata[k] = v
		}
	}
}

// WithActor tags the event with the kiosk user that triggered it.
func WithActor(userID uuid.UUID) EventOption {
	return func(e *Event) {
		if userID != uuid.Nil {
			e.Metadata["actor_id"] = userID.String()
		}
	}
}

func NewEvent(opts ...EventOption) Event {
	e := Event{
		ID:        uuid.Must(uuid.NewV7()),
		CreatedAt: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// EventLogger is a sink for activity events.
type EventLogger interface {
	Save(ctx context.Context, e Event) error
}

// Reader queries stored activity.
type Reader interface {
	GetByType(ctx context.Context, eventType string, limit int) ([]Event, error)
}

// ErrBufferFull reports an event dropped by a saturated Worker.
var ErrBufferFull = errors.New("activity buffer full")
