package ical

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// maxOccurrences caps a single recurring VEVENT inside the horizon.
const maxOccurrences = 500

type occurrence struct {
	start time.Time
	end   *time.Time
}

// expandWindow keeps occurrences that have not ended before from and start
// no later than to.
type expandWindow struct {
	from time.Time
	to   time.Time
}

func (w expandWindow) expand(e vevent) ([]occurrence, error) {
	if e.rrule == "" {
		if !w.includes(e.start, e.end) {
			return nil, nil
		}
		return []occurrence{{start: e.start, end: e.end}}, nil
	}

	r, err := rrule.StrToRRule(e.rrule)
	if err != nil {
		return nil, fmt.Errorf("parse rrule: %w", err)
	}
	r.DTStart(e.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range e.exdates {
		set.ExDate(ex.In(e.start.Location()))
	}

	var duration time.Duration
	if e.end != nil {
		duration = e.end.Sub(e.start)
	}

	from := w.from.Add(-duration).In(e.start.Location())
	to := w.to.In(e.start.Location())
	starts := set.Between(from, to, true)
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}

	out := make([]occurrence, 0, len(starts))
	for _, start := range starts {
		occ := occurrence{start: start}
		if e.end != nil {
			end := start.Add(duration)
			occ.end = &end
		}
		if w.includes(occ.start, occ.end) {
			out = append(out, occ)
		}
	}
	return out, nil
}

func (w expandWindow) includes(start time.Time, end *time.Time) bool {
	effectiveEnd := start
	if end != nil {
		effectiveEnd = *end
	}
	return !effectiveEnd.Before(w.from) && !start.After(w.to)
}
