package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

func TestMerge_KeepsIdentityAndFillsGaps(t *testing.T) {
	firstSeen := time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 5, 21, 0, 0, 0, time.UTC)

	existing := domain.Event{
		ID:         "aaaaaaaaaaaaaaaa",
		Title:      "Levi Henriksen",
		Venue:      "Verket Scene",
		Price:      "kr 250",
		SourceType: domain.SourceTypePage,
		FirstSeen:  firstSeen,
		LastSeen:   firstSeen,
	}
	incoming := domain.Event{
		ID:          "bbbbbbbbbbbbbbbb",
		Title:       "Levi henriksen",
		Description: "Konsert med band.",
		Venue:       "Et annet sted",
		Price:       "kr 300",
		ImageURL:    "https://example.org/levi.jpg",
		Address:     "Verkstedveien 1",
		Category:    "Musikk",
		End:         &end,
		SourceType:  domain.SourceTypeFeed,
		FirstSeen:   now,
		LastSeen:    now,
	}

	got := Merge(existing, incoming, now)

	assert.Equal(t, "aaaaaaaaaaaaaaaa", got.ID)
	assert.Equal(t, "Levi Henriksen", got.Title)
	assert.Equal(t, firstSeen, got.FirstSeen)
	assert.Equal(t, now, got.LastSeen)
	assert.Equal(t, "Konsert med band.", got.Description)
	assert.Equal(t, "Verket Scene", got.Venue)
	assert.Equal(t, "kr 250", got.Price)
	assert.Equal(t, "https://example.org/levi.jpg", got.ImageURL)
	assert.Equal(t, "Verkstedveien 1", got.Address)
	assert.Equal(t, "Musikk", got.Category)
	assert.Equal(t, domain.SourceTypePage, got.SourceType)
	if assert.NotNil(t, got.End) {
		assert.Equal(t, end, *got.End)
		assert.NotSame(t, incoming.End, got.End)
	}

	assert.Empty(t, existing.Description, "existing must not be modified")
	assert.Nil(t, existing.End)
}

func TestMerge_LastSeenNeverMovesBack(t *testing.T) {
	later := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	existing := domain.Event{ID: "a", LastSeen: later}

	got := Merge(existing, domain.Event{}, later.Add(-time.Hour))
	assert.Equal(t, later, got.LastSeen)
}

func TestMerge_TrustedSourceOverridesLinks(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	existing := domain.Event{
		ID:         "a",
		URL:        "https://page.example/event",
		TicketURL:  "https://page.example/tickets",
		SourceType: domain.SourceTypePage,
	}
	incoming := domain.Event{
		URL:        "https://calendar.example/event",
		TicketURL:  "",
		SourceType: domain.SourceTypeCalendar,
	}

	got := Merge(existing, incoming, now)

	assert.Equal(t, "https://calendar.example/event", got.URL)
	assert.Equal(t, "https://page.example/tickets", got.TicketURL)
	assert.Equal(t, domain.SourceTypeCalendar, got.SourceType)

	back := Merge(got, existing, now)
	assert.Equal(t, "https://calendar.example/event", back.URL)
	assert.Equal(t, domain.SourceTypeCalendar, back.SourceType)
}

func TestMerge_NeverLosesPopulatedFields(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(3 * time.Hour)
	otherEnd := now.Add(5 * time.Hour)

	types := []domain.SourceType{
		domain.SourceTypeCalendar, domain.SourceTypeAPI, domain.SourceTypePage,
		domain.SourceTypeFeed, domain.SourceTypeEmail, domain.SourceTypeManual,
	}

	for _, a := range types {
		for _, b := range types {
			existing := domain.Event{
				ID: "a", Description: "Beskrivelse A", URL: "https://a/url",
				TicketURL: "https://a/tickets", ImageURL: "https://a/img",
				Venue: "Venue A", Address: "Address A", Price: "kr 100",
				Category: "Musikk", End: &end, SourceType: a,
			}
			incoming := domain.Event{
				ID: "b", Description: "Beskrivelse B", URL: "https://b/url",
				TicketURL: "https://b/tickets", ImageURL: "https://b/img",
				Venue: "Venue B", Address: "Address B", Price: "kr 200",
				Category: "Teater", End: &otherEnd, SourceType: b,
			}

			got := Merge(existing, incoming, now)

			assert.Equal(t, existing.Description, got.Description)
			assert.Equal(t, existing.ImageURL, got.ImageURL)
			assert.Equal(t, existing.Venue, got.Venue)
			assert.Equal(t, existing.Address, got.Address)
			assert.Equal(t, existing.Price, got.Price)
			assert.Equal(t, existing.Category, got.Category)
			assert.Equal(t, end, *got.End)

			if b.Outranks(a) {
				assert.Equal(t, incoming.URL, got.URL)
				assert.Equal(t, incoming.TicketURL, got.TicketURL)
			} else {
				assert.Equal(t, existing.URL, got.URL)
				assert.Equal(t, existing.TicketURL, got.TicketURL)
			}
		}
	}
}
