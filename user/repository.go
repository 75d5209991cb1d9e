package user

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/billbatista/acasinha-chores/database"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNameExists = apperr.Conflict("user already exists")
	ErrBlankName  = apperr.Validation("name is required")
	ErrInvalidPIN = apperr.Validation("pin must be 4 to 8 digits")
	ErrWrongPIN   = apperr.Unauthorized("invalid user or pin")
)

type repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Register(ctx context.Context, name, pin string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankName
	}

	user := &User{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if pin != "" {
		if !validPIN(pin) {
			return nil, ErrInvalidPIN
		}
		hashedPIN, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing pin: %w", err)
		}
		user.PINHash = string(hashedPIN)
	}

	query := `INSERT INTO users (id, name, pin_hash, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.PINHash, database.ToMillis(user.CreatedAt))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrNameExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return user, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, name, pin_hash, created_at FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *repository) GetByName(ctx context.Context, name string) (*User, error) {
	query := `SELECT id, name, pin_hash, created_at FROM users WHERE name = $1`
	return r.getOne(ctx, query, strings.TrimSpace(name))
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.PINHash,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	user.CreatedAt = database.FromMillis(createdAt)

	return &user, nil
}

func (r *repository) List(ctx context.Context) ([]User, error) {
	query := `SELECT id, name, pin_hash, created_at FROM users ORDER BY name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var user User
		var createdAt int64
		if err := rows.Scan(&user.ID, &user.Name, &user.PINHash, &createdAt); err != nil {
			return nil, err
		}
		user.CreatedAt = database.FromMillis(createdAt)
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *repository) VerifyPIN(hashedPIN, pin string) error {
	if hashedPIN == "" {
		return ErrWrongPIN
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPIN), []byte(pin)); err != nil {
		return ErrWrongPIN
	}
	return nil
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
