package repository

import (
	"context"
	"fmt"
	"time"

	"restmold/internal/database"
	"restmold/internal/models"
)

// EventSchema maps models.Event onto the events table.
func EventSchema() Schema[models.Event] {
	return Schema[models.Event]{
		Table:    "events",
		IDColumn: "id",
		Columns: []string{
			"id", "title", "description", "event_date", "event_time",
			"location", "image", "created_at", "updated_at",
		},
		Fields: func(e *models.Event) []any {
			return []any{
				&e.ID, &e.Title, &e.Description, &e.EventDate, &e.EventTime,
				&e.Location, &e.Image, &e.CreatedAt, &e.UpdatedAt,
			}
		},
		InsertColumns: []string{"title", "description", "event_date", "event_time", "location", "image"},
		InsertValues: func(e models.Event) []any {
			return []any{e.Title, e.Description, e.EventDate, e.EventTime, e.Location, e.Image}
		},
		UpdatedAtColumn: "updated_at",
	}
}

// EventRepository adds calendar queries on top of the generic CRUD set.
type EventRepository struct {
	*Repository[models.Event, int64]
	q database.Querier
}

// NewEventRepository binds an event repository to a session.
func NewEventRepository(session *database.Session) (*EventRepository, error) {
	base, err := New[models.Event, int64](EventSchema(), session)
	if err != nil {
		return nil, err
	}
	return &EventRepository{Repository: base, q: session}, nil
}

// NewEventReader binds a read-only event repository to the pool.
func NewEventReader(q database.Querier) (*EventRepository, error) {
	base, err := NewReadOnly[models.Event, int64](EventSchema(), q)
	if err != nil {
		return nil, err
	}
	return &EventRepository{Repository: base, q: q}, nil
}

const eventColumns = "id, title, description, event_date, event_time, location, image, created_at, updated_at"

// Search lists events whose title or description matches the term. The OR is
// outside what Filters can express, so the statement is written by hand.
func (r *EventRepository) Search(ctx context.Context, term string, page Page) ([]models.Event, error) {
	sql := fmt.Sprintf(
		"SELECT %s FROM events WHERE title ILIKE $1 OR description ILIKE $1 ORDER BY event_date", eventColumns)
	if page.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", page.Limit)
	}
	if page.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", page.Offset)
	}

	rows, err := r.q.Query(ctx, sql, "%"+term+"%")
	if err != nil {
		return nil, fmt.Errorf("searching events: %w", err)
	}
	return r.collect(rows)
}

// ByDateRange lists events scheduled within [from, to] inclusive, soonest
// first.
func (r *EventRepository) ByDateRange(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	sql := fmt.Sprintf(
		"SELECT %s FROM events WHERE event_date >= $1 AND event_date <= $2 ORDER BY event_date", eventColumns)

	rows, err := r.q.Query(ctx, sql, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing events by date range: %w", err)
	}
	return r.collect(rows)
}

// Upcoming lists events from the given day forward, soonest first.
func (r *EventRepository) Upcoming(ctx context.Context, from time.Time, page Page) ([]models.Event, error) {
	sql := fmt.Sprintf("SELECT %s FROM events WHERE event_date >= $1 ORDER BY event_date", eventColumns)
	if page.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", page.Limit)
	}
	if page.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", page.Offset)
	}

	rows, err := r.q.Query(ctx, sql, from)
	if err != nil {
		return nil, fmt.Errorf("listing upcoming events: %w", err)
	}
	return r.collect(rows)
}

// ByLocation lists events at a location, soonest first.
func (r *EventRepository) ByLocation(ctx context.Context, location string, page Page) ([]models.Event, error) {
	sql := fmt.Sprintf("SELECT %s FROM events WHERE location = $1 ORDER BY event_date", eventColumns)
	if page.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", page.Limit)
	}
	if page.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", page.Offset)
	}

	rows, err := r.q.Query(ctx, sql, location)
	if err != nil {
		return nil, fmt.Errorf("listing events by location: %w", err)
	}
	return r.collect(rows)
}
