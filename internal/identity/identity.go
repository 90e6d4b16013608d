// Package identity derives the stable content-based key of an event.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// IDLength is the number of hex characters kept from the digest.
const IDLength = 16

const unknownVenue = "unknown"

// Slugify lowercases s, transliterates it to ASCII and collapses separators.
func Slugify(s string) string {
	return slug.Make(strings.TrimSpace(s))
}

// GenerateID fingerprints an event by slug(title), the calendar day of start
// in its own location and slug(venue). Times of day are ignored on purpose, so
// a corrected start time on the same day keeps the same identity.
func GenerateID(title string, start time.Time, venue string) string {
	venueSlug := Slugify(venue)
	if venueSlug == "" {
		venueSlug = unknownVenue
	}

	key := Slugify(title) + "|" + start.Format(time.DateOnly) + "|" + venueSlug
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:IDLength]
}

// Generator fixes the zone used to pick the calendar day, so events stored in
// UTC keep their local date around midnight.
type Generator struct {
	loc *time.Location
}

func NewGenerator(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{loc: loc}
}

// ID returns the identity of (title, start, venue) with start read in the
// generator's zone.
func (g *Generator) ID(title string, start time.Time, venue string) string {
	return GenerateID(title, start.In(g.loc), venue)
}

// Day returns the calendar day of t in the generator's zone.
func (g *Generator) Day(t time.Time) string {
	return t.In(g.loc).Format(time.DateOnly)
}

// Location returns the zone the generator reads dates in.
func (g *Generator) Location() *time.Location {
	return g.loc
}

// Valid reports whether id has the shape of a generated identity.
func Valid(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for _, r := range id {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
