package plan

import (
	"fmt"
	"strings"
)

var premiumTiers = map[string]bool{"premium": true, "uhd": true}

// Advise returns non-blocking review notes for a document that already passed
// validation. Notes never make a document invalid.
func (v *Validator) Advise(doc *PlanDocument) []string {
	if doc == nil {
		return nil
	}
	var notes []string
	seenPairs := make(map[string]bool, len(doc.Plans))
	for _, p := range doc.Plans {
		pair := normalizeKey(p.Region) + "|" + normalizeKey(p.Tier)
		if seenPairs[pair] {
			notes = append(notes, fmt.Sprintf("Duplicate region/tier combination for %s %s.", p.Region, p.Tier))
		}
		seenPairs[pair] = true

		if premiumTiers[normalizeKey(p.Tier)] {
			q := strings.ToUpper(strings.TrimSpace(p.VideoQuality))
			if q != "UHD" && q != "4K" {
				notes = append(notes, fmt.Sprintf("Premium tier plan '%s' should advertise UHD or 4K video quality.", p.Name))
			}
		}
		if p.Price != nil && p.Price.Monthly != nil && *p.Price.Monthly == 0 && len(p.AddOns) == 0 {
			notes = append(notes, fmt.Sprintf("Plan '%s' is free with no add-ons; confirm that is intentional.", p.Name))
		}
	}
	return notes
}
