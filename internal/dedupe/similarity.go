package dedupe

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

const (
	titleWeight = 0.5
	timeWeight  = 0.3
	venueWeight = 0.2

	// blankVenueRatio is used when either side has no venue.
	blankVenueRatio = 50.0
)

// Scorer rates how likely two events are the same occurrence, 0..100.
type Scorer func(a, b domain.Event, window time.Duration) float64

// Ratio returns the edit-distance similarity of a and b on lowercased text,
// 0..100. Two empty strings are identical.
func Ratio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}

	dist := levenshtein.ComputeDistance(a, b)
	return math.Round(100 * (1 - float64(dist)/float64(longest)))
}

// Similarity is the default Scorer: title ratio weighted 0.5, a binary start
// proximity flag weighted 0.3 and venue ratio weighted 0.2.
func Similarity(a, b domain.Event, window time.Duration) float64 {
	title := Ratio(a.Title, b.Title)

	var near float64
	if absDuration(a.Start.Sub(b.Start)) <= window {
		near = 100
	}

	venue := blankVenueRatio
	if strings.TrimSpace(a.Venue) != "" && strings.TrimSpace(b.Venue) != "" {
		venue = Ratio(a.Venue, b.Venue)
	}

	return title*titleWeight + near*timeWeight + venue*venueWeight
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
