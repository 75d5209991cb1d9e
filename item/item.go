package item

import (
	"time"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/google/uuid"
)

const DefaultIcon = "📦"

var (
	ErrBlankName     = apperr.Validation("name is required")
	ErrNameExists    = apperr.Conflict("item already exists")
	ErrNegativeStock = apperr.Validation("stock can't be negative")
	ErrNotFound      = apperr.NotFound("item not found")
)

// Item is a household consumable whose stock level is tracked (toilet
// paper, detergent...).
type Item struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

// Stock is one stock reading. Readings are append-only; the latest one is
// the current level.
type Stock struct {
	ID       uuid.UUID `json:"id"`
	ItemID   uuid.UUID `json:"item_id"`
	Level    int       `json:"stock"`
	LoggedAt time.Time `json:"logged_at"`
}

// WithStock pairs an item with its latest reading, if any.
type WithStock struct {
	Item
	Stock *Stock `json:"current_stock"`
}

func NewStock(itemID uuid.UUID, level int, at time.Time) (Stock, error) {
	if level < 0 {
		return Stock{}, ErrNegativeStock
	}
	return Stock{
		// v7 ids sort by creation, breaking ties between same-millisecond readings
		ID:       uuid.Must(uuid.NewV7()),
		ItemID:   itemID,
		Level:    level,
		LoggedAt: at.UTC(),
	}, nil
}
