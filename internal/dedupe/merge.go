package dedupe

import (
	"time"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

// Merge folds incoming into existing and returns the result. Neither argument
// is modified. The survivor keeps its identity and first sighting, empty
// fields are filled from incoming, and links from a more trusted source type
// replace the survivor's.
func Merge(existing, incoming domain.Event, now time.Time) domain.Event {
	out := existing

	if now.After(out.LastSeen) {
		out.LastSeen = now
	}
	if incoming.LastSeen.After(out.LastSeen) {
		out.LastSeen = incoming.LastSeen
	}

	fill(&out.Description, incoming.Description)
	fill(&out.URL, incoming.URL)
	fill(&out.TicketURL, incoming.TicketURL)
	fill(&out.ImageURL, incoming.ImageURL)
	fill(&out.Venue, incoming.Venue)
	fill(&out.Address, incoming.Address)
	fill(&out.Price, incoming.Price)
	fill(&out.Category, incoming.Category)

	if existing.End != nil {
		end := *existing.End
		out.End = &end
	} else if incoming.End != nil {
		end := *incoming.End
		out.End = &end
	}

	if incoming.SourceType.Outranks(existing.SourceType) {
		if incoming.URL != "" {
			out.URL = incoming.URL
		}
		if incoming.TicketURL != "" {
			out.TicketURL = incoming.TicketURL
		}
		out.SourceType = incoming.SourceType
	}

	return out
}

func fill(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}
