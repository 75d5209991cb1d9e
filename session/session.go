package session

import (
	"context"
	"time"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/google/uuid"
)

var (
	ErrInvalidSession = apperr.Unauthorized("invalid session")
	ErrExpiredSession = apperr.Unauthorized("session expired")
)

const (
	DefaultTTL = 12 * time.Hour
	CookieName = "kiosk_session"
)

// Session ties a kiosk browser to the user recognized at the camera. It
// replaces any notion of a process-wide current user.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, userID uuid.UUID) (*Session, error)
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
