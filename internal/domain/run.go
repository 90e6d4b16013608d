package domain

import "time"

// MatchReason tells which deduplication path folded a record.
type MatchReason string

const (
	MatchExact MatchReason = "exact"
	MatchFuzzy MatchReason = "fuzzy"
)

// DuplicateMapping records that OriginalID was folded into CanonicalID.
type DuplicateMapping struct {
	OriginalID  string      `json:"original_id"`
	CanonicalID string      `json:"canonical_id"`
	Reason      MatchReason `json:"reason"`
	Score       float64     `json:"score,omitempty"`
}

// SourceStatus is the outcome of fetching one source during a run.
type SourceStatus struct {
	SourceID   string    `json:"source_id"`
	OK         bool      `json:"ok"`
	Events     int       `json:"events"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunStats holds statistics about one pipeline run. It is persisted as the
// last-run statistics store.
type RunStats struct {
	RunID             string        `json:"run_id"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at"`
	Duration          time.Duration `json:"-"`
	DurationSeconds   float64       `json:"duration_seconds"`
	SourcesAttempted  int           `json:"sources_attempted"`
	SourcesSucceeded  int           `json:"sources_succeeded"`
	SourcesFailed     int           `json:"sources_failed"`
	FailedSources     []string      `json:"failed_sources"`
	EventsFetched     int           `json:"events_fetched"`
	EventsNormalized  int           `json:"events_normalized"`
	NormalizeFailures int           `json:"normalize_failures"`
	UniqueEvents      int           `json:"unique_events"`
	Duplicates        int           `json:"duplicates"`
	Recognized        int           `json:"recognized"`
	NewEvents         int           `json:"new_events"`
	UpdatedEvents     int           `json:"updated_events"`
	ArchivedEvents    int           `json:"archived_events"`
	TotalEvents       int           `json:"total_events"`
	TotalArchived     int           `json:"total_archived"`
	Published         int           `json:"published"`
	Errors            int           `json:"errors"`
}

// ChangeAction describes what happened to an event in the catalog.
type ChangeAction string

const (
	ActionCreated  ChangeAction = "created"
	ActionUpdated  ChangeAction = "updated"
	ActionArchived ChangeAction = "archived"
)
