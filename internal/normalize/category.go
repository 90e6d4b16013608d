package normalize

import "strings"

// Category is one row of the ordered category table.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// DefaultCategories is used when no table is configured.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Musikk", Keywords: []string{"konsert", "concert", "musikk", "band", "jazz", "blues", "rock", "orkester"}},
		{Name: "Teater", Keywords: []string{"teater", "forestilling", "revy", "musikal", "standup", "stand-up", "komedie"}},
		{Name: "Barn og familie", Keywords: []string{"barn", "familie", "eventyr", "barneforestilling"}},
		{Name: "Film", Keywords: []string{"film", "kino", "premiere"}},
		{Name: "Kunst", Keywords: []string{"utstilling", "galleri", "kunst", "vernissage"}},
		{Name: "Litteratur", Keywords: []string{"foredrag", "forfatter", "bokbad", "litteratur", "bibliotek"}},
		{Name: "Quiz", Keywords: []string{"quiz"}},
		{Name: "Marked", Keywords: []string{"marked", "loppemarked", "bondens marked"}},
	}
}

// Categorize returns the first category with a keyword occurring in the title
// or description, or "" when none matches.
func (n *Normalizer) Categorize(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, c := range n.categories {
		for _, kw := range c.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
				return c.Name
			}
		}
	}
	return ""
}
