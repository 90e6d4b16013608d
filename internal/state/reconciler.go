// Package state reconciles each run's events with the persisted catalog.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

var (
	ErrSaveEvents  = errors.New("save events")
	ErrSaveArchive = errors.New("save archive")
)

// Store is the persisted catalog: current events and the archive.
type Store interface {
	LoadEvents() []domain.Event
	SaveEvents(events []domain.Event) error
	LoadArchive() []domain.Event
	SaveArchive(events []domain.Event) error
}

type Option func(*Reconciler)

// WithArchiveLimit tells the reconciler how many archive entries the store
// keeps, so reported totals match what is on disk.
func WithArchiveLimit(limit int) Option {
	return func(r *Reconciler) { r.archiveLimit = limit }
}

type Reconciler struct {
	store        Store
	archiveLimit int
	now          func() time.Time
	logger       *slog.Logger
}

func NewReconciler(store Store, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		now:    time.Now,
		logger: logger.With("component", "reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MergeResult is the catalog after merging one run's events into it.
type MergeResult struct {
	Events  []domain.Event
	New     []domain.Event
	Updated []domain.Event
}

// MergeNewEvents matches incoming events to existing ones by ID. A match
// bumps LastSeen and fills an empty description or links; populated fields
// are never overwritten. Unmatched events are appended.
func (r *Reconciler) MergeNewEvents(existing, incoming []domain.Event) MergeResult {
	now := r.now().UTC()

	res := MergeResult{Events: make([]domain.Event, len(existing), len(existing)+len(incoming))}
	copy(res.Events, existing)

	index := make(map[string]int, len(existing))
	for i, ev := range res.Events {
		index[ev.ID] = i
	}

	for _, ev := range incoming {
		if i, ok := index[ev.ID]; ok {
			cur := res.Events[i]
			if now.After(cur.LastSeen) {
				cur.LastSeen = now
			}
			backfill(&cur.Description, ev.Description)
			backfill(&cur.URL, ev.URL)
			backfill(&cur.TicketURL, ev.TicketURL)
			backfill(&cur.ImageURL, ev.ImageURL)
			res.Events[i] = cur
			res.Updated = append(res.Updated, cur)
			continue
		}

		if ev.FirstSeen.IsZero() {
			ev.FirstSeen = now
		}
		if ev.LastSeen.Before(now) {
			ev.LastSeen = now
		}
		if ev.Status == "" {
			ev.Status = domain.StatusUpcoming
		}
		index[ev.ID] = len(res.Events)
		res.Events = append(res.Events, ev)
		res.New = append(res.New, ev)
	}

	return res
}

func backfill(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// ArchiveOldEvents splits events into those still current and those whose
// end (or start) lies more than archiveHours in the past. Archived events
// come back with their status set.
func (r *Reconciler) ArchiveOldEvents(events []domain.Event, archiveHours float64) (current, archived []domain.Event) {
	now := r.now()
	grace := time.Duration(archiveHours * float64(time.Hour))

	current = make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if ev.IsArchived() || now.After(ev.EffectiveEnd().Add(grace)) {
			ev.Status = domain.StatusArchived
			archived = append(archived, ev)
			continue
		}
		current = append(current, ev)
	}
	return current, archived
}

// Summary reports what one FullStateUpdate changed.
type Summary struct {
	Total         int
	New           int
	Updated       int
	Archived      int
	TotalArchived int

	NewEvents      []domain.Event
	UpdatedEvents  []domain.Event
	ArchivedEvents []domain.Event
}

// FullStateUpdate loads the catalog, merges incoming into it, moves elapsed
// events to the archive and saves. The archive is written first and only when
// events were archived in this call, so an elapsed event is always in at least
// one file. Events already archived earlier stay archived.
//
// A failure to save the archive keeps the elapsed events in the catalog for
// the next run, wraps ErrSaveArchive and still returns the summary. A failure
// to save the events file wraps ErrSaveEvents and returns no summary.
func (r *Reconciler) FullStateUpdate(incoming []domain.Event, archiveHours float64) (*Summary, error) {
	archive := r.store.LoadArchive()

	archivedIDs := make(map[string]struct{}, len(archive))
	for _, ev := range archive {
		archivedIDs[ev.ID] = struct{}{}
	}

	fresh := make([]domain.Event, 0, len(incoming))
	for _, ev := range incoming {
		if _, ok := archivedIDs[ev.ID]; ok {
			r.logger.Debug("ignoring event already archived", "id", ev.ID, "title", ev.Title)
			continue
		}
		fresh = append(fresh, ev)
	}

	merged := r.MergeNewEvents(r.store.LoadEvents(), fresh)
	current, archivedNow := r.ArchiveOldEvents(merged.Events, archiveHours)

	var archiveErr error
	if len(archivedNow) > 0 {
		updated := upsertArchive(archive, archivedNow)
		if err := r.store.SaveArchive(updated); err != nil {
			r.logger.Error("failed to save archive, keeping elapsed events", "error", err)
			archiveErr = fmt.Errorf("%w: %w", ErrSaveArchive, err)
			current = merged.Events
			archivedNow = nil
		} else {
			archive = updated
		}
	}

	summary := &Summary{
		Total:          len(current),
		New:            len(merged.New),
		Updated:        len(merged.Updated),
		Archived:       len(archivedNow),
		TotalArchived:  r.archiveSize(len(archive)),
		NewEvents:      merged.New,
		UpdatedEvents:  merged.Updated,
		ArchivedEvents: archivedNow,
	}

	if err := r.store.SaveEvents(current); err != nil {
		r.logger.Error("failed to save events", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSaveEvents, err)
	}
	if archiveErr != nil {
		return summary, archiveErr
	}

	r.logger.Info("state updated",
		"total", summary.Total,
		"new", summary.New,
		"updated", summary.Updated,
		"archived", summary.Archived,
		"total_archived", summary.TotalArchived,
	)
	return summary, nil
}

func (r *Reconciler) archiveSize(n int) int {
	if r.archiveLimit > 0 && n > r.archiveLimit {
		return r.archiveLimit
	}
	return n
}

// upsertArchive adds events to archive, replacing entries with the same ID.
func upsertArchive(archive, events []domain.Event) []domain.Event {
	out := make([]domain.Event, len(archive), len(archive)+len(events))
	copy(out, archive)

	index := make(map[string]int, len(out))
	for i, ev := range out {
		index[ev.ID] = i
	}
	for _, ev := range events {
		ev.Status = domain.StatusArchived
		if i, ok := index[ev.ID]; ok {
			out[i] = ev
			continue
		}
		index[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}
