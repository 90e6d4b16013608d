package dedupe

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/identity"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/normalize"
)

var fixedNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func oslo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)
	return loc
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDeduplicator(t *testing.T, opts ...Option) *Deduplicator {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(identity.NewGenerator(oslo(t)), discardLogger(), opts...)
}

func constantScore(score float64) Scorer {
	return func(domain.Event, domain.Event, time.Duration) float64 { return score }
}

func TestDeduplicate_SameConcertFromTwoSources(t *testing.T) {
	loc := oslo(t)
	n := normalize.New(normalize.Config{
		Location:    loc,
		DefaultCity: "Moss",
		VenueAliases: map[string]string{
			"verket":       "Verket Scene",
			"verket scene": "Verket Scene",
		},
	}, discardLogger())

	events, report := n.NormalizeBatch([]domain.RawEvent{
		{
			Title:      "Levi Henriksen",
			StartAt:    time.Date(2025, 9, 5, 19, 0, 0, 0, loc),
			Venue:      "Verket",
			Price:      "kr 350",
			URL:        "https://verket.example/levi",
			SourceType: domain.SourceTypePage,
		},
		{
			Title:      "levi henriksen",
			StartAt:    time.Date(2025, 9, 5, 19, 30, 0, 0, loc),
			Venue:      "verket scene",
			Price:      "kr 350",
			URL:        "https://ical.example/levi",
			SourceType: domain.SourceTypeCalendar,
		},
	})
	require.Len(t, events, 2)
	require.Empty(t, report.Issues)

	d := newTestDeduplicator(t)
	res := d.Deduplicate(events)

	require.Len(t, res.Unique, 1)
	want := identity.GenerateID("Levi Henriksen", time.Date(2025, 9, 5, 0, 0, 0, 0, loc), "Verket Scene")
	assert.Equal(t, want, res.Unique[0].ID)
	assert.Equal(t, "https://ical.example/levi", res.Unique[0].URL)
	assert.Equal(t, domain.SourceTypeCalendar, res.Unique[0].SourceType)

	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, domain.MatchExact, res.Duplicates[0].Reason)
	assert.Equal(t, want, res.Duplicates[0].CanonicalID)
	assert.True(t, d.Has(want))
}

func TestDeduplicate_ThresholdIsInclusive(t *testing.T) {
	loc := oslo(t)
	start := time.Date(2025, 9, 5, 19, 0, 0, 0, loc)

	batch := make([]domain.Event, 50)
	for i := range batch {
		batch[i] = domain.Event{
			Title: fmt.Sprintf("Jazzkveld %02d", i+1),
			Start: start,
			Venue: "Verket Scene",
		}
	}

	t.Run("89 keeps all", func(t *testing.T) {
		d := newTestDeduplicator(t, WithScorer(constantScore(89)))
		res := d.Deduplicate(batch)
		assert.Len(t, res.Unique, 50)
		assert.Empty(t, res.Duplicates)
	})

	t.Run("90 merges all", func(t *testing.T) {
		d := newTestDeduplicator(t, WithScorer(constantScore(90)))
		res := d.Deduplicate(batch)
		require.Len(t, res.Unique, 1)
		assert.Len(t, res.Duplicates, 49)
		for _, m := range res.Duplicates {
			assert.Equal(t, domain.MatchFuzzy, m.Reason)
			assert.Equal(t, 90.0, m.Score)
			assert.Equal(t, res.Unique[0].ID, m.CanonicalID)
		}
	})
}

func TestDeduplicate_FuzzyWithDefaultScorer(t *testing.T) {
	loc := oslo(t)
	d := newTestDeduplicator(t)

	res := d.Deduplicate([]domain.Event{
		{Title: "Sommerjazz i Kirkeparken", Start: time.Date(2025, 7, 4, 18, 0, 0, 0, loc), Venue: "Verket Scene"},
		{Title: "Sommerjaz i Kirkeparken", Start: time.Date(2025, 7, 4, 18, 30, 0, 0, loc), Venue: "verket scene", Price: "Gratis"},
		{Title: "Quiz på Verket", Start: time.Date(2025, 7, 4, 18, 0, 0, 0, loc), Venue: "Verket Scene"},
	})

	require.Len(t, res.Unique, 2)
	assert.Equal(t, "Gratis", res.Unique[0].Price)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, domain.MatchFuzzy, res.Duplicates[0].Reason)
	assert.Equal(t, 98.0, res.Duplicates[0].Score)
}

func TestDeduplicate_CandidatesAcrossMidnight(t *testing.T) {
	loc := oslo(t)
	d := newTestDeduplicator(t, WithScorer(constantScore(100)))

	res := d.Deduplicate([]domain.Event{
		{Title: "Nattkino", Start: time.Date(2025, 9, 5, 23, 30, 0, 0, loc)},
		{Title: "Nattkino!", Start: time.Date(2025, 9, 6, 0, 15, 0, 0, loc)},
	})

	assert.Len(t, res.Unique, 1)
}

func TestDeduplicate_IgnoresDistantStarts(t *testing.T) {
	loc := oslo(t)
	d := newTestDeduplicator(t, WithScorer(constantScore(100)))

	res := d.Deduplicate([]domain.Event{
		{Title: "Strikkekafé", Start: time.Date(2025, 9, 5, 10, 0, 0, 0, loc)},
		{Title: "Strikkekafe", Start: time.Date(2025, 9, 6, 11, 0, 0, 0, loc)},
		{Title: "Strikke-kafé", Start: time.Date(2025, 9, 8, 10, 0, 0, 0, loc)},
	})

	assert.Len(t, res.Unique, 3)
	assert.Empty(t, res.Duplicates)
}

func TestDeduplicate_NeverGrowsAndRecordsEverySurvivor(t *testing.T) {
	loc := oslo(t)
	d := newTestDeduplicator(t)

	var batch []domain.Event
	for i := range 20 {
		batch = append(batch, domain.Event{
			Title: fmt.Sprintf("Konsert %d", i%7),
			Start: time.Date(2025, 9, 1+i%3, 19, 0, 0, 0, loc),
			Venue: []string{"Verket Scene", "", "Moss kirke"}[i%3],
		})
	}

	res := d.Deduplicate(batch)

	assert.LessOrEqual(t, len(res.Unique), len(batch))
	assert.Equal(t, len(batch), len(res.Unique)+len(res.Duplicates))
	for _, ev := range res.Unique {
		assert.True(t, d.Has(ev.ID), ev.ID)
	}
}

func TestDeduplicate_RecognizesPreviousRun(t *testing.T) {
	loc := oslo(t)
	start := time.Date(2025, 9, 5, 19, 0, 0, 0, loc)
	known := identity.GenerateID("Levi Henriksen", start, "Verket Scene")

	d := newTestDeduplicator(t)
	d.Load([]string{known})

	res := d.Deduplicate([]domain.Event{
		{Title: "Levi Henriksen", Start: start, Venue: "Verket Scene"},
	})

	require.Len(t, res.Unique, 1)
	assert.Equal(t, known, res.Unique[0].ID)
	assert.Equal(t, 1, res.Recognized)
	assert.Empty(t, res.Duplicates)
	assert.Equal(t, []string{known}, d.Seen())
}

// Recognition is content addressed: a reworded title from upstream produces a
// new fingerprint and the event re-enters as unknown.
func TestDeduplicate_TitleDriftIsNotRecognized(t *testing.T) {
	loc := oslo(t)
	start := time.Date(2025, 9, 5, 19, 0, 0, 0, loc)
	known := identity.GenerateID("Levi Henriksen", start, "Verket Scene")

	d := newTestDeduplicator(t)
	d.Load([]string{known})

	res := d.Deduplicate([]domain.Event{
		{Title: "Levi Henriksen & Babylon Badlands", Start: start, Venue: "Verket Scene"},
	})

	require.Len(t, res.Unique, 1)
	assert.NotEqual(t, known, res.Unique[0].ID)
	assert.Zero(t, res.Recognized)
	assert.Len(t, d.Seen(), 2)
}

func TestDeduplicator_Load(t *testing.T) {
	d := newTestDeduplicator(t)
	d.Load([]string{"b", "a", "a"})

	assert.Equal(t, []string{"a", "b"}, d.Seen())
	assert.True(t, d.Has("a"))
	assert.False(t, d.Has("c"))

	d.Load(nil)
	assert.Empty(t, d.Seen())
}
