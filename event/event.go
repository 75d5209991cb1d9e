package event

import (
	"time"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/google/uuid"
)

var ErrNotFound = apperr.NotFound("event not found")

// Event is an immutable fact: a user did something in a category. Its cost,
// if any, lives in the ledger entries that reference it.
type Event struct {
	ID         uuid.UUID     `json:"id"`
	UserID     uuid.UUID     `json:"user_id"`
	CategoryID uuid.UUID     `json:"category_id"`
	LoggedAt   time.Time     `json:"logged_at"`
	Notes      string        `json:"notes"`
	StockID    uuid.NullUUID `json:"stock_id"`

	// Filled by read queries.
	UserName     string `json:"user_name,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
}

func New(userID, categoryID uuid.UUID, notes string, at time.Time) Event {
	return Event{
		ID:         uuid.Must(uuid.NewV7()),
		UserID:     userID,
		CategoryID: categoryID,
		LoggedAt:   at.UTC(),
		Notes:      notes,
	}
}
