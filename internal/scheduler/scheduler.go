package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

// ErrRunInProgress is returned when a run is requested while the previous
// one has not finished.
var ErrRunInProgress = errors.New("run already in progress")

// Runner defines the interface for a single pipeline pass.
type Runner interface {
	Run(ctx context.Context) (*domain.RunStats, error)
}

type Scheduler struct {
	runner   Runner
	expr     string
	schedule cron.Schedule
	timeout  time.Duration
	location *time.Location
	logger   *slog.Logger

	mu sync.Mutex
}

// NewScheduler validates the cron expression up front so a typo fails at
// startup instead of at the first tick.
func NewScheduler(runner Runner, expr string, timeout time.Duration, location *time.Location, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	if location == nil {
		location = time.Local
	}

	return &Scheduler{
		runner:   runner,
		expr:     expr,
		schedule: schedule,
		timeout:  timeout,
		location: location,
		logger:   logger.With("component", "scheduler"),
	}, nil
}

// Next reports when the schedule fires after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// Start runs once immediately and then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			s.logger.Error("scheduled run failed", "error", err)
		}
	}))

	s.logger.Info("scheduler started", "schedule", s.expr, "next", s.Next(time.Now()))

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("initial run failed", "error", err)
	}

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// RunOnce performs one bounded run. It returns ErrRunInProgress without
// running when another run holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.mu.TryLock() {
		s.logger.Warn("skipping run, previous run still in progress")
		return ErrRunInProgress
	}
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if _, err := s.runner.Run(runCtx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// cronLogger routes cron's own messages into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
