package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/state"
)

type Source interface {
	ID() string
	Name() string
	FetchEvents(ctx context.Context) ([]domain.RawEvent, error)
}

type StateStore interface {
	FullStateUpdate(incoming []domain.Event, archiveHours float64) (*state.Summary, error)
}

type SeenStore interface {
	LoadSeenHashes() []string
	SaveSeenHashes(hashes []string) error
}

type RunStatsStore interface {
	SaveRunStats(stats *domain.RunStats) error
}

type EventStore interface {
	Upsert(ctx context.Context, event *domain.Event) error
}

type DuplicateStore interface {
	InsertBatch(ctx context.Context, runID string, mappings []domain.DuplicateMapping) error
}

type RunStore interface {
	Insert(ctx context.Context, stats *domain.RunStats) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, event *domain.Event, action domain.ChangeAction) error
	Close() error
}

type MetricsRecorder interface {
	ObserveRun(stats *domain.RunStats, duplicates []domain.DuplicateMapping)
}
