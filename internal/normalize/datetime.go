package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	dottedDateRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})(?:\s*,?\s+(?:kl\.?\s*)?(\d{1,2})[:.](\d{2}))?$`)
	slashDateRe  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:\s+(\d{1,2}):(\d{2}))?$`)

	ordinalDayRe = regexp.MustCompile(`(?i)\b(\d{1,2})\.\s+([a-z])`)
	clockWordRe  = regexp.MustCompile(`(?i)\bkl\.?\s*`)
)

// Norwegian month and weekday words. Weekdays are dropped, the parser does not
// need them.
var localizedWords = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bjanuar\b`), "january"},
	{regexp.MustCompile(`(?i)\bfebruar\b`), "february"},
	{regexp.MustCompile(`(?i)\bmars\b`), "march"},
	{regexp.MustCompile(`(?i)\bmai\b`), "may"},
	{regexp.MustCompile(`(?i)\bjuni\b`), "june"},
	{regexp.MustCompile(`(?i)\bjuli\b`), "july"},
	{regexp.MustCompile(`(?i)\boktober\b`), "october"},
	{regexp.MustCompile(`(?i)\bdesember\b`), "december"},
	{regexp.MustCompile(`(?i)\bokt\b\.?`), "oct"},
	{regexp.MustCompile(`(?i)\bdes\b\.?`), "dec"},
	{regexp.MustCompile(`(?i)\b(mandag|tirsdag|onsdag|torsdag|fredag|lørdag|søndag)\b,?\s*`), ""},
	{regexp.MustCompile(`(?i)\b(man|tir|ons|tor|fre|lør|søn)\.?\s+(\d)`), "$2"},
}

// translateDate rewrites Norwegian date words into the English forms the
// fuzzy parser understands.
func translateDate(text string) string {
	s := strings.TrimSpace(text)
	for _, w := range localizedWords {
		s = w.re.ReplaceAllString(s, w.repl)
	}
	s = ordinalDayRe.ReplaceAllString(s, "$1 $2")
	s = clockWordRe.ReplaceAllString(s, "")
	return collapseSpace(s)
}

// monthNameLayouts cover "day month year [time]" after translation. The
// fuzzy parser rejects a clock after a day-first written date.
var monthNameLayouts = []string{
	"2 January 2006 15:04",
	"2 January 2006 15.04",
	"2 Jan 2006 15:04",
	"2 Jan 2006 15.04",
	"2 January 2006",
	"2 Jan 2006",
}

// NormalizeDateTime parses free-text dates. Explicit regional forms are tried
// before the general parser. Values without a zone are read in the configured
// zone; the result is always UTC. A date without a time means midnight for a
// start and 23:59 for an end.
func (n *Normalizer) NormalizeDateTime(text string, isEnd bool) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrUnparseableDate)
	}

	lower := strings.ToLower(s)
	for _, re := range []*regexp.Regexp{dottedDateRe, slashDateRe} {
		if m := re.FindStringSubmatch(lower); m != nil {
			t, err := n.fromParts(m[1:], isEnd)
			if err != nil {
				return time.Time{}, fmt.Errorf("%w: %q: %v", ErrUnparseableDate, text, err)
			}
			return t, nil
		}
	}

	translated := translateDate(s)
	for _, layout := range monthNameLayouts {
		t, err := time.ParseInLocation(layout, translated, n.loc)
		if err != nil {
			continue
		}
		if isEnd && !strings.Contains(layout, "15") {
			t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, n.loc)
		}
		return t.UTC(), nil
	}

	t, err := dateparse.ParseIn(translated, n.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrUnparseableDate, text, err)
	}
	return t.UTC(), nil
}

// fromParts builds a time from day, month, year and optional hour and minute.
func (n *Normalizer) fromParts(parts []string, isEnd bool) (time.Time, error) {
	day, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	year, _ := strconv.Atoi(parts[2])

	hour, minute := 0, 0
	if isEnd {
		hour, minute = 23, 59
	}
	if parts[3] != "" {
		hour, _ = strconv.Atoi(parts[3])
		minute, _ = strconv.Atoi(parts[4])
	}

	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	if day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, fmt.Errorf("day %d out of range", day)
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("time %02d:%02d out of range", hour, minute)
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, n.loc).UTC(), nil
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NormalizeTime converts an already parsed time to UTC. Floating times carry
// wall-clock values only and are placed in the configured zone first.
func (n *Normalizer) NormalizeTime(t time.Time, floating bool) time.Time {
	if floating {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), n.loc)
	}
	return t.UTC()
}
