package domain

import "time"

// SourceType identifies the kind of upstream a record was scraped from.
type SourceType string

const (
	SourceTypeCalendar SourceType = "ical"
	SourceTypeFeed     SourceType = "rss"
	SourceTypePage     SourceType = "html"
	SourceTypeAPI      SourceType = "api"
	SourceTypeEmail    SourceType = "email"
	SourceTypeManual   SourceType = "manual"
)

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeCalendar, SourceTypeFeed, SourceTypePage,
		SourceTypeAPI, SourceTypeEmail, SourceTypeManual:
		return true
	}
	return false
}

// sourcePriority ranks structured sources above unstructured ones.
var sourcePriority = map[SourceType]int{
	SourceTypeCalendar: 6,
	SourceTypeAPI:      5,
	SourceTypePage:     4,
	SourceTypeFeed:     3,
	SourceTypeEmail:    2,
	SourceTypeManual:   1,
}

// Priority returns the trust rank of the source type. Unknown types rank lowest.
func (t SourceType) Priority() int {
	return sourcePriority[t]
}

// Outranks reports whether t is trusted more than other for linking.
func (t SourceType) Outranks(other SourceType) bool {
	return t.Priority() > other.Priority()
}

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusArchived Status = "archived"
)

// PriceFree is the normalized price of free-admission events.
const PriceFree = "Gratis"

// Event is the canonical catalog record.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end"`
	Venue       string     `json:"venue"`
	Address     string     `json:"address"`
	City        string     `json:"city"`
	Category    string     `json:"category"`
	Price       string     `json:"price"`
	URL         string     `json:"url"`
	TicketURL   string     `json:"ticket_url"`
	ImageURL    string     `json:"image_url"`
	Source      string     `json:"source"`
	SourceType  SourceType `json:"source_type"`
	SourceURL   string     `json:"source_url"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	Status      Status     `json:"status"`
}

// EffectiveEnd returns End when known, otherwise Start.
func (e Event) EffectiveEnd() time.Time {
	if e.End != nil {
		return *e.End
	}
	return e.Start
}

// IsArchived reports whether the event has left the upcoming set.
func (e Event) IsArchived() bool {
	return e.Status == StatusArchived
}

// RawEvent is what source adapters hand to the pipeline. The start is given
// either as a parsed time (StartAt) or as free text (StartText); likewise for
// the end. Floating marks parsed times that carry no zone of their own.
type RawEvent struct {
	ID          string
	Title       string
	Description string
	StartAt     time.Time
	StartText   string
	EndAt       *time.Time
	EndText     string
	Floating    bool
	Venue       string
	Address     string
	City        string
	Category    string
	Price       string
	URL         string
	TicketURL   string
	ImageURL    string
	Source      string
	SourceType  SourceType
	SourceURL   string
}
