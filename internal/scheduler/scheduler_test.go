package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

type fakeRunner struct {
	calls atomic.Int32
	run   func(ctx context.Context) error
}

func (f *fakeRunner) Run(ctx context.Context) (*domain.RunStats, error) {
	f.calls.Add(1)
	if f.run != nil {
		if err := f.run(ctx); err != nil {
			return nil, err
		}
	}
	return &domain.RunStats{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler(&fakeRunner{}, "every other tuesday", time.Minute, time.UTC, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse schedule")
}

func TestScheduler_Next(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)

	s, err := NewScheduler(&fakeRunner{}, "0 */2 * * *", time.Minute, oslo, testLogger())
	require.NoError(t, err)

	from := time.Date(2025, 9, 1, 13, 15, 0, 0, oslo)
	assert.Equal(t, time.Date(2025, 9, 1, 14, 0, 0, 0, oslo), s.Next(from))
}

func TestScheduler_RunOnce_AppliesTimeout(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	s, err := NewScheduler(runner, "@hourly", 20*time.Millisecond, time.UTC, testLogger())
	require.NoError(t, err)

	err = s.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestScheduler_RunOnce_SkipsWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runner := &fakeRunner{run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}
	s, err := NewScheduler(runner, "@hourly", time.Minute, time.UTC, testLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.RunOnce(context.Background()) }()
	<-started

	assert.ErrorIs(t, s.RunOnce(context.Background()), ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), runner.calls.Load())

	runner.run = nil
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestScheduler_Start_RunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{}, 1)
	runner := &fakeRunner{run: func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}
	s, err := NewScheduler(runner, "@yearly", time.Minute, time.UTC, testLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run did not happen")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduler_RunOnce_CancelledContext(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewScheduler(runner, "@hourly", time.Minute, time.UTC, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.RunOnce(ctx), context.Canceled)
	assert.Equal(t, int32(0), runner.calls.Load())
}
