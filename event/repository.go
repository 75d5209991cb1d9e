package event

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/billbatista/acasinha-chores/database"
	"github.com/google/uuid"
)

type repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *repository {
	return &repository{db: db}
}

const selectEvent = `SELECT e.id, e.user_id, e.category_id, e.logged_at, e.notes, e.stock_id, u.name, c.name
              FROM events e
              INNER JOIN users u ON u.id = e.user_id
              INNER JOIN categories c ON c.id = e.category_id`

// Insert writes evt through exec, which may be a transaction.
func Insert(ctx context.Context, exec database.Execer, evt Event) error {
	query := `INSERT INTO events (id, user_id, category_id, logged_at, notes, stock_id) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := exec.ExecContext(
		ctx,
		query,
		evt.ID,
		evt.UserID,
		evt.CategoryID,
		database.ToMillis(evt.LoggedAt),
		evt.Notes,
		evt.StockID,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	return r.getOne(ctx, selectEvent+` WHERE e.id = $1`, id)
}

// Recent returns the latest events, newest first.
func (r *repository) Recent(ctx context.Context, limit int) ([]Event, error) {
	query := selectEvent + ` ORDER BY e.logged_at DESC, e.id DESC LIMIT $1`
	return r.list(ctx, query, limit)
}

// ListByCategory returns the events of a category, newest first.
func (r *repository) ListByCategory(ctx context.Context, categoryID uuid.UUID, limit int) ([]Event, error) {
	query := selectEvent + ` WHERE e.category_id = $1 ORDER BY e.logged_at DESC, e.id DESC LIMIT $2`
	return r.list(ctx, query, categoryID, limit)
}

// Latest returns the newest event of a category, or nil when it has none.
func (r *repository) Latest(ctx context.Context, categoryID uuid.UUID) (*Event, error) {
	query := selectEvent + ` WHERE e.category_id = $1 ORDER BY e.logged_at DESC, e.id DESC LIMIT 1`
	return r.getOne(ctx, query, categoryID)
}

// HasUserEntrySince reports whether userID logged an event in categoryID at
// or after since.
func (r *repository) HasUserEntrySince(ctx context.Context, userID, categoryID uuid.UUID, since time.Time) (bool, error) {
	query := `SELECT 1 FROM events WHERE user_id = $1 AND category_id = $2 AND logged_at >= $3 LIMIT 1`

	var found int
	err := r.db.QueryRowContext(ctx, query, userID, categoryID, database.ToMillis(since)).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying user entry: %w", err)
	}
	return true, nil
}

func (r *repository) getOne(ctx context.Context, query string, args ...any) (*Event, error) {
	evt, err := scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return &evt, nil
}

func (r *repository) list(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		evt, err := scan(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}

	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Event, error) {
	var evt Event
	var loggedAt int64
	err := s.Scan(
		&evt.ID,
		&evt.UserID,
		&evt.CategoryID,
		&loggedAt,
		&evt.Notes,
		&evt.StockID,
		&evt.UserName,
		&evt.CategoryName,
	)
	if err != nil {
		return Event{}, err
	}
	evt.LoggedAt = database.FromMillis(loggedAt)
	return evt, nil
}
