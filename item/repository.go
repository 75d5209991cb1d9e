package item

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
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

func (r *repository) Create(ctx context.Context, name, icon string) (*Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankName
	}
	if strings.TrimSpace(icon) == "" {
		icon = DefaultIcon
	}

	it := &Item{
		ID:        uuid.New(),
		Name:      name,
		Icon:      icon,
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO items (id, name, icon, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, it.ID, it.Name, it.Icon, database.ToMillis(it.CreatedAt))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrNameExists
		}
		return nil, fmt.Errorf("inserting item: %w", err)
	}

	return it, nil
}

// Ensure returns the item named name, creating it when missing.
func (r *repository) Ensure(ctx context.Context, name, icon string) (*Item, error) {
	var it Item
	var createdAt int64
	query := `SELECT id, name, icon, created_at FROM items WHERE name = $1`
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(name)).Scan(&it.ID, &it.Name, &it.Icon, &createdAt)
	if err == nil {
		it.CreatedAt = database.FromMillis(createdAt)
		return &it, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return r.Create(ctx, name, icon)
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	var it Item
	var createdAt int64
	query := `SELECT id, name, icon, created_at FROM items WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&it.ID, &it.Name, &it.Icon, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying item: %w", err)
	}
	it.CreatedAt = database.FromMillis(createdAt)
	return &it, nil
}

// ListWithStock returns every item with its latest stock reading.
func (r *repository) ListWithStock(ctx context.Context) ([]WithStock, error) {
	query := `SELECT i.id, i.name, i.icon, i.created_at, s.id, s.stock, s.logged_at
              FROM items i
              LEFT JOIN item_stocks s ON s.id = (
                  SELECT s2.id FROM item_stocks s2
                  WHERE s2.item_id = i.id
                  ORDER BY s2.logged_at DESC, s2.id DESC
                  LIMIT 1
              )
              ORDER BY i.name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := make([]WithStock, 0)
	for rows.Next() {
		var ws WithStock
		var createdAt int64
		var stockID uuid.NullUUID
		var level, loggedAt sql.NullInt64
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Icon, &createdAt, &stockID, &level, &loggedAt); err != nil {
			return nil, err
		}
		ws.CreatedAt = database.FromMillis(createdAt)
		if stockID.Valid {
			ws.Stock = &Stock{
				ID:       stockID.UUID,
				ItemID:   ws.ID,
				Level:    int(level.Int64),
				LoggedAt: database.FromMillis(loggedAt.Int64),
			}
		}
		items = append(items, ws)
	}

	return items, rows.Err()
}

// SetStock records a new stock reading for itemID.
func (r *repository) SetStock(ctx context.Context, itemID uuid.UUID, level int) (*Stock, error) {
	it, err := r.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, ErrNotFound
	}

	stock, err := NewStock(itemID, level, time.Now())
	if err != nil {
		return nil, err
	}
	if err := InsertStock(ctx, r.db, stock); err != nil {
		return nil, err
	}
	return &stock, nil
}

// InsertStock writes s through exec, which may be a transaction.
func InsertStock(ctx context.Context, exec database.Execer, s Stock) error {
	query := `INSERT INTO item_stocks (id, item_id, stock, logged_at) VALUES ($1, $2, $3, $4)`
	_, err := exec.ExecContext(ctx, query, s.ID, s.ItemID, s.Level, database.ToMillis(s.LoggedAt))
	if err != nil {
		return fmt.Errorf("inserting item stock: %w", err)
	}
	return nil
}
