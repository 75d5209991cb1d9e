package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/billbatista/acasinha-chores/database"
	"github.com/google/uuid"
)

type repository struct {
	db  *database.DB
	ttl time.Duration
	now func() time.Time
}

type Option func(*repository)

// WithTTL sets how long a new session stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(r *repository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *repository) { r.now = now }
}

func NewRepository(db *database.DB, opts ...Option) *repository {
	r := &repository{db: db, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *repository) Create(ctx context.Context, userID uuid.UUID) (*Session, error) {
	token, err := generateSecureToken()
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	session := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}

	query := `
        INSERT INTO sessions (id, user_id, token, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `

	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		database.ToMillis(session.ExpiresAt),
		database.ToMillis(session.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	return session, nil
}

// GetByToken retrieves a session by token and validates it's not expired
func (r *repository) GetByToken(ctx context.Context, token string) (*Session, error) {
	var session Session
	var expiresAt, createdAt int64

	query := `
        SELECT id, user_id, token, expires_at, created_at
        FROM sessions
        WHERE token = $1
    `

	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresAt,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	session.ExpiresAt = database.FromMillis(expiresAt)
	session.CreatedAt = database.FromMillis(createdAt)

	if r.now().After(session.ExpiresAt) {
		return nil, ErrExpiredSession
	}

	return &session, nil
}

// Delete removes a session (logout)
func (r *repository) Delete(ctx context.Context, token string) error {
	query := `DELETE FROM sessions WHERE token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// DeleteByUserID removes all sessions for a user
func (r *repository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
