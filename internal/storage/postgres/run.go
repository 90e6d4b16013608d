package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

// RunStore keeps the history of pipeline runs.
type RunStore struct {
	db *sqlx.DB
}

func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Insert(ctx context.Context, stats *domain.RunStats) error {
	query := `
		INSERT INTO runs (
			run_id, started_at, finished_at, duration_seconds,
			sources_attempted, sources_succeeded, sources_failed, failed_sources,
			events_fetched, events_normalized, normalize_failures, duplicates,
			recognized, new_events, updated_events, archived_events,
			total_events, total_archived, published, errors
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (run_id) DO NOTHING`

	failed := stats.FailedSources
	if failed == nil {
		failed = []string{}
	}

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		stats.RunID,
		stats.StartedAt,
		stats.FinishedAt,
		stats.DurationSeconds,
		stats.SourcesAttempted,
		stats.SourcesSucceeded,
		stats.SourcesFailed,
		pq.Array(failed),
		stats.EventsFetched,
		stats.EventsNormalized,
		stats.NormalizeFailures,
		stats.Duplicates,
		stats.Recognized,
		stats.NewEvents,
		stats.UpdatedEvents,
		stats.ArchivedEvents,
		stats.TotalEvents,
		stats.TotalArchived,
		stats.Published,
		stats.Errors,
	)
	return err
}
