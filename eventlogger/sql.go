package eventlogger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/billbatista/acasinha-chores/database"
)

type sqlEventLogger struct {
	db *database.DB
}

func NewSqlEventLogger(db *database.DB) *sqlEventLogger {
	return &sqlEventLogger{
		db: db,
	}
}

func (el *sqlEventLogger) Save(ctx context.Context, e Event) error {
	data := e.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	jsonMetadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	statement := `INSERT INTO activity_log (id, event_type, event_data, event_metadata, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = el.db.ExecContext(ctx, statement, e.ID, e.Type, string(data), string(jsonMetadata), database.ToMillis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}

	return nil
}

// GetByType returns the newest events of eventType, or of every type when
// eventType is empty.
func (el *sqlEventLogger) GetByType(ctx context.Context, eventType string, limit int) ([]Event, error) {
	query := `SELECT id, event_type, event_data, event_metadata, created_at FROM activity_log`
	args := []any{}
	if eventType != "" {
		query += ` WHERE event_type = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
		args = append(args, eventType, limit)
	} else {
		query += ` ORDER BY created_at DESC, id DESC LIMIT $1`
		args = append(args, limit)
	}

	result, err := el.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	events := make([]Event, 0)
	for result.Next() {
		var event Event
		var data, jsonMetadata string
		var createdAt int64
		if err := result.Scan(&event.ID, &event.Type, &data, &jsonMetadata, &createdAt); err != nil {
			return events, err
		}
		event.Data = json.RawMessage(data)
		if err := json.Unmarshal([]byte(jsonMetadata), &event.Metadata); err != nil {
			return events, fmt.Errorf("decoding activity metadata: %w", err)
		}
		event.CreatedAt = database.FromMillis(createdAt)

		events = append(events, event)
	}

	if err := result.Err(); err != nil {
		return events, err
	}

	return events, nil
}
