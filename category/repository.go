package category

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

const selectCategory = `SELECT id, name, icon, kind, created_at FROM categories`

func (r *repository) Create(ctx context.Context, name, icon string, kind Kind) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankName
	}
	kind, err := ParseKind(string(kind))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(icon) == "" {
		icon = DefaultIcon
	}

	c := &Category{
		ID:        uuid.New(),
		Name:      name,
		Icon:      icon,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO categories (id, name, icon, kind, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = r.db.ExecContext(ctx, query, c.ID, c.Name, c.Icon, c.Kind, database.ToMillis(c.CreatedAt))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrNameExists
		}
		return nil, fmt.Errorf("inserting category: %w", err)
	}

	return c, nil
}

// Ensure returns the category named name, creating it when missing.
func (r *repository) Ensure(ctx context.Context, name, icon string, kind Kind) (*Category, error) {
	existing, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return r.Create(ctx, name, icon, kind)
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	return r.getOne(ctx, selectCategory+` WHERE id = $1`, id)
}

func (r *repository) GetByName(ctx context.Context, name string) (*Category, error) {
	return r.getOne(ctx, selectCategory+` WHERE name = $1`, strings.TrimSpace(name))
}

// FindByKind returns the alphabetically first category of kind, or nil.
func (r *repository) FindByKind(ctx context.Context, kind Kind) (*Category, error) {
	return r.getOne(ctx, selectCategory+` WHERE kind = $1 ORDER BY name ASC LIMIT 1`, kind)
}

func (r *repository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, selectCategory+` ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*Category, error) {
	c, err := scan(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying category: %w", err)
	}
	return &c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Category, error) {
	var c Category
	var createdAt int64
	if err := s.Scan(&c.ID, &c.Name, &c.Icon, &c.Kind, &createdAt); err != nil {
		return Category{}, err
	}
	c.CreatedAt = database.FromMillis(createdAt)
	return c, nil
}
