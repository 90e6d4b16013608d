package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/config"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/dedupe"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/normalize"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/state"
)

type Option func(*PipelineService)

// WithMirror copies every run's changes into a database.
func WithMirror(events EventStore, duplicates DuplicateStore, runs RunStore, txManager TransactionManager) Option {
	return func(s *PipelineService) {
		s.events = events
		s.duplicates = duplicates
		s.runs = runs
		s.txManager = txManager
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *PipelineService) { s.publisher = p }
}

func WithMetrics(r MetricsRecorder) Option {
	return func(s *PipelineService) { s.metrics = r }
}

// PipelineService runs sources through normalization, deduplication and
// state reconciliation.
type PipelineService struct {
	sources      []Source
	normalizer   *normalize.Normalizer
	deduplicator *dedupe.Deduplicator
	reconciler   StateStore
	seen         SeenStore
	lastRun      RunStatsStore
	tracker      *SourceTracker

	events     EventStore
	duplicates DuplicateStore
	runs       RunStore
	txManager  TransactionManager
	publisher  Publisher
	metrics    MetricsRecorder

	logger *slog.Logger
	config config.StateConfig
	now    func() time.Time
}

func NewPipelineService(
	sources []Source,
	normalizer *normalize.Normalizer,
	deduplicator *dedupe.Deduplicator,
	reconciler StateStore,
	seen SeenStore,
	lastRun RunStatsStore,
	tracker *SourceTracker,
	logger *slog.Logger,
	cfg config.StateConfig,
	opts ...Option,
) *PipelineService {
	s := &PipelineService{
		sources:      sources,
		normalizer:   normalizer,
		deduplicator: deduplicator,
		reconciler:   reconciler,
		seen:         seen,
		lastRun:      lastRun,
		tracker:      tracker,
		logger:       logger.With("component", "pipeline"),
		config:       cfg,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one pipeline pass. Failures of single sources, records or
// outbound integrations are counted in the returned stats; an error is only
// returned when the events file could not be written.
func (s *PipelineService) Run(ctx context.Context) (*domain.RunStats, error) {
	startTime := s.now()
	stats := &domain.RunStats{
		RunID:         uuid.NewString(),
		StartedAt:     startTime.UTC(),
		FailedSources: []string{},
	}
	logger := s.logger.With("run_id", stats.RunID)
	logger.Info("starting run", "sources", len(s.sources))

	raws := s.fetchAll(ctx, logger, stats)

	events, report := s.normalizer.NormalizeBatch(raws)
	stats.EventsNormalized = report.Normalized
	stats.NormalizeFailures = report.Failures()

	s.deduplicator.Load(s.seen.LoadSeenHashes())
	result := s.deduplicator.Deduplicate(events)
	stats.UniqueEvents = len(result.Unique)
	stats.Duplicates = len(result.Duplicates)
	stats.Recognized = result.Recognized

	if err := s.seen.SaveSeenHashes(s.deduplicator.Seen()); err != nil {
		stats.Errors++
		logger.Error("failed to save seen hashes", "error", err)
	}

	summary, err := s.reconciler.FullStateUpdate(result.Unique, s.config.ArchiveHours)
	if err != nil {
		if summary == nil || errors.Is(err, state.ErrSaveEvents) {
			return stats, fmt.Errorf("update state: %w", err)
		}
		stats.Errors++
		logger.Error("state partially saved", "error", err)
	}
	stats.NewEvents = summary.New
	stats.UpdatedEvents = summary.Updated
	stats.ArchivedEvents = summary.Archived
	stats.TotalEvents = summary.Total
	stats.TotalArchived = summary.TotalArchived

	if s.events != nil {
		if err := s.mirror(ctx, stats.RunID, summary, result.Duplicates); err != nil {
			stats.Errors++
			logger.Error("failed to mirror catalog", "error", err)
		}
	}

	if s.publisher != nil {
		s.publish(ctx, logger, stats, summary)
	}

	stats.FinishedAt = s.now().UTC()
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)
	stats.DurationSeconds = stats.Duration.Seconds()

	if s.runs != nil {
		if err := s.runs.Insert(ctx, stats); err != nil {
			stats.Errors++
			logger.Error("failed to record run", "error", err)
		}
	}

	if err := s.lastRun.SaveRunStats(stats); err != nil {
		stats.Errors++
		logger.Error("failed to save run stats", "error", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveRun(stats, result.Duplicates)
	}

	logger.Info("run completed",
		"fetched", stats.EventsFetched,
		"normalized", stats.EventsNormalized,
		"duplicates", stats.Duplicates,
		"new", stats.NewEvents,
		"updated", stats.UpdatedEvents,
		"archived", stats.ArchivedEvents,
		"failed_sources", stats.SourcesFailed,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

// fetchAll pulls every source in order. A failing source is recorded and
// skipped.
func (s *PipelineService) fetchAll(ctx context.Context, logger *slog.Logger, stats *domain.RunStats) []domain.RawEvent {
	var raws []domain.RawEvent

	for _, src := range s.sources {
		stats.SourcesAttempted++
		srcLogger := logger.With("source", src.ID())

		s.tracker.Start(src.ID())
		fetched, err := src.FetchEvents(ctx)
		if err != nil {
			s.tracker.Fail(src.ID(), err)
			stats.SourcesFailed++
			stats.FailedSources = append(stats.FailedSources, src.ID())
			srcLogger.Error("failed to fetch source", "source_name", src.Name(), "error", err)
			continue
		}
		s.tracker.Succeed(src.ID(), len(fetched))
		stats.SourcesSucceeded++

		for i := range fetched {
			if fetched[i].Source == "" {
				fetched[i].Source = src.ID()
			}
		}
		raws = append(raws, fetched...)
		srcLogger.Info("fetched events from source", "count", len(fetched))
	}

	stats.EventsFetched = len(raws)
	return raws
}

func (s *PipelineService) mirror(ctx context.Context, runID string, summary *state.Summary, mappings []domain.DuplicateMapping) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, group := range [][]domain.Event{summary.NewEvents, summary.UpdatedEvents, summary.ArchivedEvents} {
			for i := range group {
				if err := s.events.Upsert(txCtx, &group[i]); err != nil {
					return fmt.Errorf("upsert event %s: %w", group[i].ID, err)
				}
			}
		}

		if len(mappings) > 0 {
			if err := s.duplicates.InsertBatch(txCtx, runID, mappings); err != nil {
				return fmt.Errorf("insert duplicates: %w", err)
			}
		}
		return nil
	})
}

func (s *PipelineService) publish(ctx context.Context, logger *slog.Logger, stats *domain.RunStats, summary *state.Summary) {
	changes := []struct {
		action domain.ChangeAction
		events []domain.Event
	}{
		{domain.ActionCreated, summary.NewEvents},
		{domain.ActionUpdated, summary.UpdatedEvents},
		{domain.ActionArchived, summary.ArchivedEvents},
	}

	for _, change := range changes {
		for i := range change.events {
			ev := &change.events[i]
			if err := s.publisher.Publish(ctx, ev, change.action); err != nil {
				stats.Errors++
				logger.Error("failed to publish event", "id", ev.ID, "action", change.action, "error", err)
				continue
			}
			stats.Published++
		}
	}
}
