// Package models holds the persisted entity types. Column mapping lives in
// the repository schemas; json tags shape the API payloads.
package models

import "time"

// Product is a catalog item.
type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Price      float64   `json:"price"`
	Weight     *float64  `json:"weight,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Event is a scheduled happening with an optional image.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	EventDate   time.Time `json:"event_date"`
	EventTime   *string   `json:"event_time,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Image       *string   `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Image is stored file metadata. Images are soft deleted so paths stay
// reserved until cleanup runs.
type Image struct {
	ID        int64      `json:"id"`
	Path      string     `json:"path"`
	Caption   *string    `json:"caption,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
