// Package domain holds the catalog entities served by the platform.
package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist in the
// source of truth.
var ErrNotFound = errors.New("not found")

// Product is a purchasable item in the storefront.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Course is a unit of learning content, composed of hosted videos.
type Course struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Summary   string    `json:"summary,omitempty"`
	Level     string    `json:"level,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is a scheduled live session.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Location  string    `json:"location,omitempty"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Capacity  int       `json:"capacity"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VideoStatus tracks a video through the third-party encoding pipeline.
type VideoStatus string

const (
	VideoPending    VideoStatus = "pending"
	VideoProcessing VideoStatus = "processing"
	VideoReady      VideoStatus = "ready"
	VideoFailed     VideoStatus = "failed"
)

// Video is a hosted video attached to a course. EncodingID references
// the asset at the external encoding service; Status is the last state
// the status-sync write path recorded for it.
type Video struct {
	ID              string      `json:"id"`
	CourseID        string      `json:"course_id"`
	Title           string      `json:"title"`
	EncodingID      string      `json:"encoding_id,omitempty"`
	Status          VideoStatus `json:"status"`
	DurationSeconds int         `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
