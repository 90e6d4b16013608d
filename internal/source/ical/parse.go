package ical

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const (
	layoutUTC   = "20060102T150405Z"
	layoutLocal = "20060102T150405"
	layoutDate  = "20060102"
)

var (
	errMissingUID   = errors.New("missing UID")
	errMissingStart = errors.New("missing DTSTART")
)

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n")

// vevent is one VEVENT reduced to what the adapter maps. Times without a
// zone are kept as wall-clock values in UTC and flagged floating.
type vevent struct {
	uid         string
	summary     string
	description string
	venue       string
	address     string
	category    string
	url         string
	imageURL    string

	start    time.Time
	end      *time.Time
	allDay   bool
	floating bool

	rrule        string
	exdates      []time.Time
	recurrenceID *time.Time

	err error
}

func parseCalendar(body []byte) ([]vevent, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	entries := make([]vevent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		entries = append(entries, parseVEvent(ve))
	}

	applyOverrides(entries)
	return entries, nil
}

// applyOverrides removes instances replaced by a RECURRENCE-ID VEVENT from
// the recurring base with the same UID.
func applyOverrides(entries []vevent) {
	bases := make(map[string]int)
	for i, e := range entries {
		if e.err == nil && e.rrule != "" && e.recurrenceID == nil {
			bases[e.uid] = i
		}
	}
	for _, e := range entries {
		if e.err != nil || e.recurrenceID == nil {
			continue
		}
		if i, ok := bases[e.uid]; ok {
			entries[i].exdates = append(entries[i].exdates, *e.recurrenceID)
		}
	}
}

func parseVEvent(ve *ics.VEvent) vevent {
	var e vevent

	e.uid = propText(ve, ics.ComponentPropertyUniqueId)
	if e.uid == "" {
		e.err = errMissingUID
		return e
	}

	e.summary = propText(ve, ics.ComponentPropertySummary)
	e.description = propText(ve, ics.ComponentPropertyDescription)
	e.url = propText(ve, ics.ComponentPropertyUrl)
	e.imageURL = propText(ve, "IMAGE")
	e.venue, e.address = splitLocation(propText(ve, ics.ComponentPropertyLocation))

	if categories := propText(ve, ics.ComponentPropertyCategories); categories != "" {
		e.category = strings.TrimSpace(strings.Split(categories, ",")[0])
	}

	startProp := ve.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil || strings.TrimSpace(startProp.Value) == "" {
		e.err = errMissingStart
		return e
	}
	start, err := parseTime(startProp.Value, startProp.ICalParameters)
	if err != nil {
		e.err = fmt.Errorf("DTSTART: %w", err)
		return e
	}
	e.start = start.t
	e.allDay = start.allDay
	e.floating = start.floating

	if endProp := ve.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil && endProp.Value != "" {
		end, err := parseTime(endProp.Value, endProp.ICalParameters)
		if err != nil {
			e.err = fmt.Errorf("DTEND: %w", err)
			return e
		}
		if !end.t.Before(e.start) {
			e.end = &end.t
		}
	}
	if e.end == nil && e.allDay {
		end := e.start.AddDate(0, 0, 1)
		e.end = &end
	}

	if p := ve.GetProperty(ics.ComponentPropertyRrule); p != nil {
		e.rrule = strings.TrimSpace(p.Value)
	}

	for _, p := range ve.GetProperties(ics.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if ex, err := parseTime(part, p.ICalParameters); err == nil {
				e.exdates = append(e.exdates, ex.t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if rid, err := parseTime(p.Value, p.ICalParameters); err == nil {
			e.recurrenceID = &rid.t
		}
	}

	return e
}

func propText(ve *ics.VEvent, prop ics.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(textUnescaper.Replace(p.Value))
}

// splitLocation treats the part before the first comma as the venue.
func splitLocation(location string) (venue, address string) {
	venue, address, _ = strings.Cut(location, ",")
	return strings.TrimSpace(venue), strings.TrimSpace(address)
}

type icsTime struct {
	t        time.Time
	allDay   bool
	floating bool
}

func parseTime(value string, params map[string][]string) (icsTime, error) {
	value = strings.TrimSpace(value)

	if isDateValue(value, params) {
		t, err := time.ParseInLocation(layoutDate, value, time.UTC)
		return icsTime{t: t, allDay: true, floating: true}, err
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse(layoutUTC, value)
		return icsTime{t: t}, err
	}

	if tzid := firstParam(params, "TZID"); tzid != "" {
		if loc, err := time.LoadLocation(strings.Trim(tzid, `"`)); err == nil {
			t, err := time.ParseInLocation(layoutLocal, value, loc)
			return icsTime{t: t}, err
		}
	}

	t, err := time.ParseInLocation(layoutLocal, value, time.UTC)
	return icsTime{t: t, floating: true}, err
}

func isDateValue(value string, params map[string][]string) bool {
	if strings.EqualFold(firstParam(params, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(value, "T")
}

func firstParam(params map[string][]string, key string) string {
	if vs, ok := params[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
