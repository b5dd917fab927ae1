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

func (s *PostgresStore) SaveVideo(ctx context.Context, v *domain.Video) error {
	if v.Title == "" {
		return fmt.Errorf("video title is required")
	}
	if v.CourseID == "" {
		return fmt.Errorf("video course id is required")
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = domain.VideoPending
	}

	now := time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO videos (id, course_id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, v.ID, v.CourseID, data, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM videos WHERE id = $1
	`, id).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("video %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}

	var v domain.Video
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListCourseVideos returns the videos of a course in creation order.
func (s *PostgresStore) ListCourseVideos(ctx context.Context, courseID string) ([]*domain.Video, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM videos WHERE course_id = $1 ORDER BY created_at ASC
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course videos: %w", err)
	}
	defer rows.Close()

	videos := []*domain.Video{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v domain.Video
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		videos = append(videos, &v)
	}
	return videos, rows.Err()
}

// UpdateVideoStatus records the state reported by the encoding service
// and returns the updated video.
func (s *PostgresStore) UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus) (*domain.Video, error) {
	v, err := s.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Status = status
	if err := s.SaveVideo(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *PostgresStore) DeleteVideo(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
