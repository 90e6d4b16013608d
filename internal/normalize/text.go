package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	PlaceholderTitle = "Uten tittel"

	maxTitleLength       = 200
	maxDescriptionLength = 1000
	minDescriptionLength = 10
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	blockTagRe   = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6]|/tr|/td)\b[^>]*>`)
	titleLabelRe = regexp.MustCompile(`(?i)^(event|konsert|concert|arrangement|forestilling|utstilling)\s*:\s*`)
)

// maxMarkupPasses bounds how many layers of entity-encoded markup are peeled.
const maxMarkupPasses = 5

// stripMarkup removes HTML tags and decodes entities. Decoding can expose
// encoded tags, so it repeats until the text no longer changes.
func stripMarkup(s string) string {
	for i := 0; i < maxMarkupPasses && strings.ContainsAny(s, "<&"); i++ {
		prev := s
		s = blockTagRe.ReplaceAllString(s, " ")
		s = html.UnescapeString(stripPolicy.Sanitize(s))
		if s == prev {
			break
		}
	}
	return s
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// NormalizeTitle cleans a title for display and identity. Empty input yields
// PlaceholderTitle.
func (n *Normalizer) NormalizeTitle(title string) string {
	t := collapseSpace(stripMarkup(title))
	for {
		loc := titleLabelRe.FindStringIndex(t)
		if loc == nil {
			break
		}
		t = strings.TrimSpace(t[loc[1]:])
	}
	if t == "" {
		return PlaceholderTitle
	}
	return truncate(upperFirst(t), maxTitleLength)
}

// NormalizeDescription strips markup and folds whitespace. Results shorter than
// ten characters are noise and come back empty.
func (n *Normalizer) NormalizeDescription(description string) string {
	d := truncate(collapseSpace(stripMarkup(description)), maxDescriptionLength)
	if utf8.RuneCountInString(d) < minDescriptionLength {
		return ""
	}
	return d
}
