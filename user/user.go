package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a household member. Users are listed alphabetically by name and
// that order is the rotation order for recurring chores.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	PINHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// HasPIN reports whether the user can start a kiosk session with a PIN.
func (u User) HasPIN() bool {
	return u.PINHash != ""
}

type Repository interface {
	Register(ctx context.Context, name, pin string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByName(ctx context.Context, name string) (*User, error)
	List(ctx context.Context) ([]User, error)
	VerifyPIN(hashedPIN, pin string) error
}

// IDs returns the ids of users in order.
func IDs(users []User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
