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

func (s *PostgresStore) SaveCourse(ctx context.Context, c *domain.Course) error {
	if c.Title == "" {
		return fmt.Errorf("course title is required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO courses (id, data, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, c.ID, data, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM courses WHERE id = $1
	`, id).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("course %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}

	var c domain.Course
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListCourses(ctx context.Context) ([]*domain.Course, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM courses ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := []*domain.Course{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c domain.Course
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		courses = append(courses, &c)
	}
	return courses, rows.Err()
}

func (s *PostgresStore) DeleteCourse(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("course %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
