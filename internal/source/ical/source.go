package ical

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

const defaultHorizonDays = 180

// Config holds iCalendar feed configuration.
type Config struct {
	ID             string
	Name           string
	URL            string
	HorizonDays    int
	Timeout        time.Duration
	UserAgent      string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source fetches one iCalendar feed and turns its VEVENTs into raw events.
type Source struct {
	httpClient     *http.Client
	id             string
	name           string
	url            string
	horizon        time.Duration
	userAgent      string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaultHorizonDays
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}

	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		id:             cfg.ID,
		name:           cfg.Name,
		url:            cfg.URL,
		horizon:        time.Duration(cfg.HorizonDays) * 24 * time.Hour,
		userAgent:      cfg.UserAgent,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", cfg.ID),
		now:            time.Now,
	}
}

func (s *Source) ID() string {
	return s.id
}

func (s *Source) Name() string {
	return s.name
}

// FetchEvents downloads the feed and returns every occurrence that has not
// ended yet and starts within the horizon.
func (s *Source) FetchEvents(ctx context.Context) ([]domain.RawEvent, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := parseCalendar(body)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	now := s.now()
	window := expandWindow{from: now, to: now.Add(s.horizon)}

	var events []domain.RawEvent
	for _, entry := range entries {
		if entry.err != nil {
			s.logger.Warn("skipping vevent", "uid", entry.uid, "error", entry.err)
			continue
		}
		occurrences, err := window.expand(entry)
		if err != nil {
			s.logger.Warn("failed to expand recurrence", "uid", entry.uid, "rrule", entry.rrule, "error", err)
			continue
		}
		for _, occ := range occurrences {
			events = append(events, s.transform(entry, occ))
		}
	}

	s.logger.Debug("parsed calendar", "vevents", len(entries), "occurrences", len(events))
	return events, nil
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	var body []byte
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		body, err = s.doRequest(ctx)
		if err == nil {
			return body, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/calendar")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty calendar")
	}

	return body, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if s.maxBackoff > 0 && backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(entry vevent, occ occurrence) domain.RawEvent {
	raw := domain.RawEvent{
		ID:          entry.uid,
		Title:       entry.summary,
		Description: entry.description,
		StartAt:     occ.start,
		Floating:    entry.floating,
		Venue:       entry.venue,
		Address:     entry.address,
		Category:    entry.category,
		URL:         entry.url,
		ImageURL:    entry.imageURL,
		Source:      s.id,
		SourceType:  domain.SourceTypeCalendar,
		SourceURL:   s.url,
	}
	if entry.rrule != "" {
		raw.ID = entry.uid + "/" + occ.start.Format("20060102T150405")
	}
	if occ.end != nil {
		end := *occ.end
		raw.EndAt = &end
	}
	return raw
}
