package service

import (
	"sort"
	"sync"
	"time"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

// SourceTracker records the fetch outcome of each source. It is safe for
// concurrent use so adapters fetching in parallel can share one tracker.
type SourceTracker struct {
	mu       sync.Mutex
	statuses map[string]*domain.SourceStatus
	now      func() time.Time
}

func NewSourceTracker() *SourceTracker {
	return &SourceTracker{
		statuses: make(map[string]*domain.SourceStatus),
		now:      time.Now,
	}
}

// Start marks a fetch of sourceID as begun, clearing any earlier outcome.
func (t *SourceTracker) Start(sourceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.statuses[sourceID] = &domain.SourceStatus{
		SourceID:  sourceID,
		StartedAt: t.now().UTC(),
	}
}

func (t *SourceTracker) Succeed(sourceID string, events int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.status(sourceID)
	st.OK = true
	st.Events = events
	st.Error = ""
	st.FinishedAt = t.now().UTC()
}

func (t *SourceTracker) Fail(sourceID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.status(sourceID)
	st.OK = false
	st.Events = 0
	if err != nil {
		st.Error = err.Error()
	}
	st.FinishedAt = t.now().UTC()
}

// Snapshot returns a copy of all statuses ordered by source ID.
func (t *SourceTracker) Snapshot() []domain.SourceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.SourceStatus, 0, len(t.statuses))
	for _, st := range t.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// status must be called with mu held.
func (t *SourceTracker) status(sourceID string) *domain.SourceStatus {
	st, ok := t.statuses[sourceID]
	if !ok {
		st = &domain.SourceStatus{SourceID: sourceID, StartedAt: t.now().UTC()}
		t.statuses[sourceID] = st
	}
	return st
}
