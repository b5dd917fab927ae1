package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atriumhq/atrium/internal/domain"
)

func (s *PostgresStore) SaveEvent(ctx context.Context, e *domain.Event) error {
	if e.Title == "" {
		return fmt.Errorf("event title is required")
	}
	if e.StartsAt.IsZero() {
		return fmt.Errorf("event start time is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (id, data, starts_at, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			starts_at = EXCLUDED.starts_at,
			updated_at = EXCLUDED.updated_at
	`, e.ID, data, e.StartsAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM events WHERE id = $1
	`, id).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	var e domain.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEvents returns events ordered soonest-first.
func (s *PostgresStore) ListEvents(ctx context.Context) ([]*domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM events ORDER BY starts_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []*domain.Event{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e domain.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
