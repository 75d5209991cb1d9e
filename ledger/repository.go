package ledger

import (
	"context"
	"fmt"

	"github.com/billbatista/acasinha-chores/database"
	"github.com/billbatista/acasinha-chores/event"
	"github.com/billbatista/acasinha-chores/item"
	"github.com/google/uuid"
)

type repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *repository {
	return &repository{db: db}
}

// SaveExpense writes an event, its optional stock reading and its ledger
// entries in one transaction, so readers see all of them or none.
func (r *repository) SaveExpense(ctx context.Context, evt event.Event, stock *item.Stock, entries []Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if stock != nil {
		if err := item.InsertStock(ctx, tx, *stock); err != nil {
			return err
		}
		evt.StockID = uuid.NullUUID{UUID: stock.ID, Valid: true}
	}

	if err := event.Insert(ctx, tx, evt); err != nil {
		return err
	}

	for _, entry := range entries {
		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Record appends a single entry, typically a settlement.
func (r *repository) Record(ctx context.Context, entry Entry) error {
	if entry.Amount <= 0 {
		return ErrInvalidAmount
	}
	return insertEntry(ctx, r.db, entry)
}

func insertEntry(ctx context.Context, exec database.Execer, entry Entry) error {
	query := `INSERT INTO ledger_entries (id, event_id, payer_id, beneficiary_id, amount, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := exec.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.EventID,
		entry.PayerID,
		entry.BeneficiaryID,
		entry.Amount,
		database.ToMillis(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting ledger entry: %w", err)
	}
	return nil
}

const selectEntry = `SELECT id, event_id, payer_id, beneficiary_id, amount, created_at FROM ledger_entries`

// List returns every entry, oldest first.
func (r *repository) List(ctx context.Context) ([]Entry, error) {
	return r.list(ctx, selectEntry+` ORDER BY created_at ASC, id ASC`)
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Entry, error) {
	return r.list(ctx, selectEntry+` WHERE event_id = $1 ORDER BY id ASC`, eventID)
}

func (r *repository) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		var createdAt int64
		err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.PayerID,
			&entry.BeneficiaryID,
			&entry.Amount,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = database.FromMillis(createdAt)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
