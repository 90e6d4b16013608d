// Package dedupe collapses repeated sightings of the same event into one
// canonical record, first by identity and then by fuzzy similarity.
package dedupe

import (
	"log/slog"
	"slices"
	"time"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/identity"
)

const (
	DefaultThreshold = 90.0
	DefaultWindow    = 60 * time.Minute

	// candidateSpan bounds how far apart two starts may be and still be
	// compared at all.
	candidateSpan = 24 * time.Hour
)

type Option func(*Deduplicator)

// WithThreshold sets the minimum score, 0..100, for a fuzzy merge.
func WithThreshold(threshold float64) Option {
	return func(d *Deduplicator) { d.threshold = threshold }
}

// WithWindow sets how close two starts must be to count as the same time.
func WithWindow(window time.Duration) Option {
	return func(d *Deduplicator) { d.window = window }
}

func WithScorer(s Scorer) Option {
	return func(d *Deduplicator) { d.score = s }
}

func WithClock(now func() time.Time) Option {
	return func(d *Deduplicator) { d.now = now }
}

// Deduplicator holds the fingerprints seen across runs. It is not safe for
// concurrent use.
type Deduplicator struct {
	ids       *identity.Generator
	threshold float64
	window    time.Duration
	score     Scorer
	now       func() time.Time
	logger    *slog.Logger

	seen map[string]struct{}
}

func New(ids *identity.Generator, logger *slog.Logger, opts ...Option) *Deduplicator {
	d := &Deduplicator{
		ids:       ids,
		threshold: DefaultThreshold,
		window:    DefaultWindow,
		score:     Similarity,
		now:       time.Now,
		logger:    logger.With("component", "deduplicator"),
		seen:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load replaces the seen-set with hashes.
func (d *Deduplicator) Load(hashes []string) {
	d.seen = make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		d.seen[h] = struct{}{}
	}
}

// Seen returns the seen-set in sorted order.
func (d *Deduplicator) Seen() []string {
	out := make([]string, 0, len(d.seen))
	for h := range d.seen {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

func (d *Deduplicator) Has(hash string) bool {
	_, ok := d.seen[hash]
	return ok
}

// Result is the outcome of one Deduplicate call.
type Result struct {
	Unique     []domain.Event
	Duplicates []domain.DuplicateMapping
	// Recognized counts events whose fingerprint was already known from a
	// previous run.
	Recognized int
}

// batch indexes the events accepted so far in one call.
type batch struct {
	events  []domain.Event
	byID    map[string]int
	buckets map[string][]int
}

// Deduplicate processes events in order. Each event is matched by identity
// against events accepted earlier in the batch, then fuzzily against accepted
// events within a day of its start. Unmatched events are accepted and their
// fingerprint added to the seen-set.
func (d *Deduplicator) Deduplicate(events []domain.Event) Result {
	now := d.now().UTC()
	b := &batch{
		events:  make([]domain.Event, 0, len(events)),
		byID:    make(map[string]int, len(events)),
		buckets: make(map[string][]int),
	}

	var res Result
	for _, ev := range events {
		originalID := ev.ID
		ev.ID = d.ids.ID(ev.Title, ev.Start, ev.Venue)
		if originalID == "" {
			originalID = ev.ID
		}

		if d.Has(ev.ID) {
			if i, ok := b.byID[ev.ID]; ok {
				b.events[i] = Merge(b.events[i], ev, now)
				res.Duplicates = append(res.Duplicates, domain.DuplicateMapping{
					OriginalID:  originalID,
					CanonicalID: b.events[i].ID,
					Reason:      domain.MatchExact,
				})
				continue
			}
			res.Recognized++
		}

		if i, score, ok := d.bestMatch(b, ev); ok {
			d.logger.Debug("fuzzy duplicate",
				"title", ev.Title,
				"canonical_id", b.events[i].ID,
				"score", score,
			)
			b.events[i] = Merge(b.events[i], ev, now)
			res.Duplicates = append(res.Duplicates, domain.DuplicateMapping{
				OriginalID:  originalID,
				CanonicalID: b.events[i].ID,
				Reason:      domain.MatchFuzzy,
				Score:       score,
			})
			continue
		}

		d.accept(b, ev)
	}

	res.Unique = b.events
	d.logger.Info("deduplication completed",
		"input", len(events),
		"unique", len(res.Unique),
		"duplicates", len(res.Duplicates),
		"recognized", res.Recognized,
	)
	return res
}

func (d *Deduplicator) accept(b *batch, ev domain.Event) {
	i := len(b.events)
	b.events = append(b.events, ev)
	b.byID[ev.ID] = i
	day := d.ids.Day(ev.Start)
	b.buckets[day] = append(b.buckets[day], i)
	d.seen[ev.ID] = struct{}{}
}

// bestMatch returns the accepted event scoring highest against ev, if that
// score reaches the threshold. Earlier events win ties.
func (d *Deduplicator) bestMatch(b *batch, ev domain.Event) (int, float64, bool) {
	best, bestScore := -1, -1.0

	local := ev.Start.In(d.ids.Location())
	for _, offset := range []int{-1, 0, 1} {
		day := d.ids.Day(local.AddDate(0, 0, offset))
		for _, i := range b.buckets[day] {
			cand := b.events[i]
			if absDuration(cand.Start.Sub(ev.Start)) > candidateSpan {
				continue
			}
			score := d.score(cand, ev, d.window)
			if score > bestScore || (score == bestScore && i < best) {
				best, bestScore = i, score
			}
		}
	}

	if best < 0 || bestScore < d.threshold {
		return 0, 0, false
	}
	return best, bestScore, true
}
