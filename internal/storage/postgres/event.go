package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

type EventStore struct {
	db *sqlx.DB
}

func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

// Upsert inserts or refreshes an event. first_seen is never rewritten,
// last_seen never moves back and an archived row stays archived.
func (s *EventStore) Upsert(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO events (
			id, title, description, start_at, end_at, venue, address, city,
			category, price, url, ticket_url, image_url, source, source_type,
			source_url, first_seen, last_seen, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			venue = EXCLUDED.venue,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			url = EXCLUDED.url,
			ticket_url = EXCLUDED.ticket_url,
			image_url = EXCLUDED.image_url,
			source = EXCLUDED.source,
			source_type = EXCLUDED.source_type,
			source_url = EXCLUDED.source_url,
			last_seen = GREATEST(events.last_seen, EXCLUDED.last_seen),
			status = CASE
				WHEN events.status = 'archived' THEN events.status
				ELSE EXCLUDED.status
			END,
			updated_at = NOW()`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.Description,
		event.Start,
		event.End,
		event.Venue,
		event.Address,
		event.City,
		event.Category,
		event.Price,
		event.URL,
		event.TicketURL,
		event.ImageURL,
		event.Source,
		string(event.SourceType),
		event.SourceURL,
		event.FirstSeen,
		event.LastSeen,
		string(event.Status),
	)
	return err
}

type eventRow struct {
	ID          string       `db:"id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	StartAt     time.Time    `db:"start_at"`
	EndAt       sql.NullTime `db:"end_at"`
	Venue       string       `db:"venue"`
	Address     string       `db:"address"`
	City        string       `db:"city"`
	Category    string       `db:"category"`
	Price       string       `db:"price"`
	URL         string       `db:"url"`
	TicketURL   string       `db:"ticket_url"`
	ImageURL    string       `db:"image_url"`
	Source      string       `db:"source"`
	SourceType  string       `db:"source_type"`
	SourceURL   string       `db:"source_url"`
	FirstSeen   time.Time    `db:"first_seen"`
	LastSeen    time.Time    `db:"last_seen"`
	Status      string       `db:"status"`
}

func (r eventRow) toDomain() domain.Event {
	ev := domain.Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Start:       r.StartAt.UTC(),
		Venue:       r.Venue,
		Address:     r.Address,
		City:        r.City,
		Category:    r.Category,
		Price:       r.Price,
		URL:         r.URL,
		TicketURL:   r.TicketURL,
		ImageURL:    r.ImageURL,
		Source:      r.Source,
		SourceType:  domain.SourceType(r.SourceType),
		SourceURL:   r.SourceURL,
		FirstSeen:   r.FirstSeen.UTC(),
		LastSeen:    r.LastSeen.UTC(),
		Status:      domain.Status(r.Status),
	}
	if r.EndAt.Valid {
		end := r.EndAt.Time.UTC()
		ev.End = &end
	}
	return ev
}

// GetByID returns the event with id, or nil when there is none.
func (s *EventStore) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT id, title, description, start_at, end_at, venue, address, city,
			category, price, url, ticket_url, image_url, source, source_type,
			source_url, first_seen, last_seen, status
		FROM events
		WHERE id = $1`

	var row eventRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ev := row.toDomain()
	return &ev, nil
}
