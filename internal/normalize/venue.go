package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minAddressLength = 5

var postalCityRe = regexp.MustCompile(`\b\d{4}\s+([\p{L}][\p{L}\-]*)`)

// NormalizeVenue cleans a venue and its address. A venue written as
// "Name, Street 1" is split when no address was given, and known aliases map
// to the canonical venue name.
func (n *Normalizer) NormalizeVenue(venue, address string) (string, string) {
	v := collapseSpace(stripMarkup(venue))
	a := collapseSpace(stripMarkup(address))
	if utf8.RuneCountInString(a) < minAddressLength {
		a = ""
	}

	if a == "" {
		if name, rest, ok := strings.Cut(v, ","); ok {
			v = strings.TrimSpace(name)
			a = strings.TrimSpace(rest)
			if utf8.RuneCountInString(a) < minAddressLength {
				a = ""
			}
		}
	}

	if canonical, ok := n.venueAliases[strings.ToLower(v)]; ok {
		v = canonical
	}
	return v, a
}

// NormalizeCity prefers an explicit city, then the place name after a postal
// code in the address, then a known regional city mentioned in the address or
// venue, and finally the configured default.
func (n *Normalizer) NormalizeCity(city, address, venue string) string {
	if c := collapseSpace(stripMarkup(city)); c != "" {
		return c
	}

	if m := postalCityRe.FindStringSubmatch(address); m != nil {
		return titleCase(m[1])
	}

	for _, text := range []string{address, venue} {
		if c := n.knownCityIn(text); c != "" {
			return c
		}
	}
	return n.defaultCity
}

func (n *Normalizer) knownCityIn(text string) string {
	if text == "" {
		return ""
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '(' || r == ')' || r == '/'
	})
	for _, city := range n.knownCities {
		target := strings.ToLower(city)
		for _, w := range words {
			if w == target {
				return city
			}
		}
	}
	return ""
}

func titleCase(s string) string {
	return upperFirst(strings.ToLower(s))
}
