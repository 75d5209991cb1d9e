package category

import (
	"time"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/google/uuid"
)

// Kind tags how a category takes part in chore tracking.
type Kind string

const (
	// KindOrdinary events are plain records: purchases, power top-ups...
	KindOrdinary Kind = "ordinary"
	// KindRotation categories are done in weekly turns (room cleaning).
	KindRotation Kind = "rotation"
	// KindRecency categories are done by whoever, only freshness matters (trash).
	KindRecency Kind = "recency"
)

const DefaultIcon = "📋"

var (
	ErrBlankName   = apperr.Validation("name is required")
	ErrNameExists  = apperr.Conflict("category already exists")
	ErrUnknownKind = apperr.Validation("kind must be ordinary, rotation or recency")
)

type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseKind accepts an empty string as KindOrdinary.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindOrdinary:
		return KindOrdinary, nil
	case KindRotation:
		return KindRotation, nil
	case KindRecency:
		return KindRecency, nil
	default:
		return "", ErrUnknownKind
	}
}
