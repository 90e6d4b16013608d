package normalize

import (
	"regexp"
	"strings"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

var (
	freeRe     = regexp.MustCompile(`(?i)\b(?:gratis|fri inngang|free entry|free admission|free)\b|\bfri entré`)
	amountPre  = regexp.MustCompile(`(?i)\b(?:kr\.?|nok)\s*(\d{1,3}(?:[ .]\d{3})+|\d+)(?:,\d{1,2})?`)
	amountPost = regexp.MustCompile(`(?i)\b(\d{1,3}(?:[ .]\d{3})+|\d+)(?:,\d{1,2})?\s*(?:,-|kr\b\.?|kroner\b|nok\b)`)
)

// NormalizePrice extracts a price from the explicit price text, falling back
// to the description. Free admission becomes domain.PriceFree, amounts become
// "kr N" with øre dropped.
func (n *Normalizer) NormalizePrice(price, description string) (string, error) {
	for _, text := range []string{price, description} {
		if p, ok := parsePrice(text); ok {
			return p, nil
		}
	}
	return "", ErrNoPrice
}

func parsePrice(text string) (string, bool) {
	text = collapseSpace(stripMarkup(text))
	if text == "" {
		return "", false
	}
	if freeRe.MatchString(text) {
		return domain.PriceFree, true
	}

	for _, re := range []*regexp.Regexp{amountPre, amountPost} {
		if m := re.FindStringSubmatch(text); m != nil {
			amount := strings.TrimLeft(strings.NewReplacer(" ", "", ".", "").Replace(m[1]), "0")
			if amount == "" {
				return domain.PriceFree, true
			}
			return "kr " + amount, true
		}
	}
	return "", false
}
