// Package normalize turns raw adapter records into canonical events.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/identity"
)

// Config holds the locale knowledge the normalizer works with.
type Config struct {
	Location     *time.Location
	DefaultCity  string
	VenueAliases map[string]string
	KnownCities  []string
	Categories   []Category
}

type Normalizer struct {
	loc          *time.Location
	defaultCity  string
	venueAliases map[string]string
	knownCities  []string
	categories   []Category
	ids          *identity.Generator
	now          func() time.Time
	logger       *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Normalizer {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	aliases := make(map[string]string, len(cfg.VenueAliases))
	for alias, canonical := range cfg.VenueAliases {
		aliases[strings.ToLower(strings.TrimSpace(alias))] = canonical
	}

	categories := cfg.Categories
	if categories == nil {
		categories = DefaultCategories()
	}

	return &Normalizer{
		loc:          loc,
		defaultCity:  cfg.DefaultCity,
		venueAliases: aliases,
		knownCities:  cfg.KnownCities,
		categories:   categories,
		ids:          identity.NewGenerator(loc),
		now:          time.Now,
		logger:       logger.With("component", "normalizer"),
	}
}

// FromRaw converts an adapter record into a provisional event. Only a missing
// or unparseable start is fatal.
func (n *Normalizer) FromRaw(raw domain.RawEvent) (domain.Event, error) {
	ev, _, err := n.fromRaw(raw)
	return ev, err
}

func (n *Normalizer) fromRaw(raw domain.RawEvent) (domain.Event, []*FieldError, error) {
	var issues []*FieldError

	var start time.Time
	switch {
	case !raw.StartAt.IsZero():
		start = n.NormalizeTime(raw.StartAt, raw.Floating)
	case strings.TrimSpace(raw.StartText) != "":
		t, err := n.NormalizeDateTime(raw.StartText, false)
		if err != nil {
			return domain.Event{}, nil, fmt.Errorf("%w: %w", ErrMissingStart, err)
		}
		start = t
	default:
		return domain.Event{}, nil, ErrMissingStart
	}

	var end *time.Time
	switch {
	case raw.EndAt != nil && !raw.EndAt.IsZero():
		t := n.NormalizeTime(*raw.EndAt, raw.Floating)
		end = &t
	case strings.TrimSpace(raw.EndText) != "":
		t, err := n.NormalizeDateTime(raw.EndText, true)
		if err != nil {
			issues = append(issues, &FieldError{Title: raw.Title, Field: "end", Err: err})
		} else {
			end = &t
		}
	}

	id := raw.ID
	if id == "" {
		id = n.ids.ID(raw.Title, start, raw.Venue)
	}

	now := n.now().UTC()
	return domain.Event{
		ID:          id,
		Title:       raw.Title,
		Description: raw.Description,
		Start:       start,
		End:         end,
		Venue:       raw.Venue,
		Address:     raw.Address,
		City:        raw.City,
		Category:    raw.Category,
		Price:       raw.Price,
		URL:         strings.TrimSpace(raw.URL),
		TicketURL:   strings.TrimSpace(raw.TicketURL),
		ImageURL:    strings.TrimSpace(raw.ImageURL),
		Source:      raw.Source,
		SourceType:  raw.SourceType,
		SourceURL:   strings.TrimSpace(raw.SourceURL),
		FirstSeen:   now,
		LastSeen:    now,
		Status:      domain.StatusUpcoming,
	}, issues, nil
}

// NormalizeEvent returns the canonical form of e with its identity
// regenerated from the normalized title, start and venue. Applying it to its
// own output changes nothing.
func (n *Normalizer) NormalizeEvent(e domain.Event) domain.Event {
	out, _ := n.normalizeEvent(e)
	return out
}

func (n *Normalizer) normalizeEvent(e domain.Event) (domain.Event, []*FieldError) {
	var issues []*FieldError

	out := e
	out.Title = n.NormalizeTitle(e.Title)
	out.Description = n.NormalizeDescription(e.Description)
	out.Start = e.Start.UTC()
	if e.End != nil {
		end := e.End.UTC()
		out.End = &end
	}
	out.Venue, out.Address = n.NormalizeVenue(e.Venue, e.Address)

	price, err := n.NormalizePrice(e.Price, out.Description)
	switch {
	case err == nil:
		out.Price = price
	case strings.TrimSpace(e.Price) != "":
		issues = append(issues, &FieldError{Title: out.Title, Field: "price", Err: err})
		out.Price = ""
	default:
		out.Price = ""
	}

	out.City = n.NormalizeCity(e.City, out.Address, out.Venue)

	out.Category = strings.TrimSpace(e.Category)
	if out.Category == "" {
		out.Category = n.Categorize(out.Title, out.Description)
	}

	if out.Status == "" {
		out.Status = domain.StatusUpcoming
	}

	out.ID = n.ids.ID(out.Title, out.Start, out.Venue)
	return out, issues
}

// NormalizeBatch normalizes every record independently. A record whose
// normalization fails is logged and passed through in its provisional form;
// records without a usable start are rejected and counted.
func (n *Normalizer) NormalizeBatch(raws []domain.RawEvent) ([]domain.Event, *Report) {
	report := &Report{}
	events := make([]domain.Event, 0, len(raws))

	for _, raw := range raws {
		report.Processed++

		provisional, issues, err := n.fromRaw(raw)
		if err != nil {
			report.Rejected++
			report.add(raw.Title, "start", err)
			n.logger.Warn("rejected event without usable start",
				"title", raw.Title,
				"source", raw.Source,
				"error", err,
			)
			continue
		}
		report.Issues = append(report.Issues, issues...)

		normalized, issues, err := n.safeNormalize(provisional)
		if err != nil {
			report.PassedThrough++
			report.add(raw.Title, "event", err)
			n.logger.Error("failed to normalize event, keeping original",
				"title", raw.Title,
				"source", raw.Source,
				"error", err,
			)
			events = append(events, provisional)
			continue
		}
		report.Issues = append(report.Issues, issues...)

		report.Normalized++
		events = append(events, normalized)
	}

	for _, issue := range report.Issues {
		if errors.Is(issue.Err, ErrMissingStart) {
			continue
		}
		n.logger.Debug("field not normalized",
			"title", issue.Title,
			"field", issue.Field,
			"error", issue.Err,
		)
	}

	return events, report
}

func (n *Normalizer) safeNormalize(e domain.Event) (out domain.Event, issues []*FieldError, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("normalize %q: panic: %v", e.Title, r)
		}
	}()
	out, issues = n.normalizeEvent(e)
	return out, issues, nil
}
