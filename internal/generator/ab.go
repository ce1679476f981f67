package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plandraft/internal/plan"

	"golang.org/x/sync/errgroup"
)

var ErrABDisabled = errors.New("A/B generation is disabled")

// Variant is one framing of the brief in an A/B run.
type Variant struct {
	Label   string
	Focus   string
	Framing string
}

// DefaultVariants pairs an affordability framing with a premium one.
var DefaultVariants = [2]Variant{
	{Label: "A", Focus: "Optimize for entry-level affordability and retention.", Framing: "affordability-led"},
	{Label: "B", Focus: "Optimize for premium upsell and average revenue per user.", Framing: "premium-led"},
}

type Proposal struct {
	Label     string  `json:"label"`
	Focus     string  `json:"focus"`
	Result    *Result `json:"result"`
	Rationale string  `json:"rationale"`
}

type ABResult struct {
	Proposals []Proposal `json:"proposals"`
}

const maxRationaleLen = 600

// GenerateAB runs one independent generation per default variant in parallel.
// Degraded variants are still returned; only a backend failure fails the pair.
func (g *Generator) GenerateAB(ctx context.Context, brief string, opts Options) (*ABResult, error) {
	if !opts.EnableAB {
		return nil, ErrABDisabled
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(brief) == "" {
		return nil, ErrEmptyBrief
	}

	proposals := make([]Proposal, len(DefaultVariants))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, v := range DefaultVariants {
		eg.Go(func() error {
			variantOpts := opts.withMetadata(map[string]any{
				"variant_label": v.Label,
				"variant_focus": v.Focus,
			})
			variantBrief := fmt.Sprintf("%s\n\nFocus for variant %s: %s", strings.TrimSpace(brief), v.Label, v.Focus)

			res, err := g.Generate(egCtx, variantBrief, variantOpts)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v.Label, err)
			}
			proposals[i] = Proposal{
				Label:     v.Label,
				Focus:     v.Focus,
				Result:    res,
				Rationale: g.rationale(egCtx, v, DefaultVariants[len(DefaultVariants)-1-i], res),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &ABResult{Proposals: proposals}, nil
}

// rationale asks the backend how this variant is positioned against the other
// one and falls back to a summary derived from the document when the call
// fails or the answer does not look like prose.
func (g *Generator) rationale(ctx context.Context, v, other Variant, res *Result) string {
	if res.Document == nil {
		return FallbackRationale(v, other, nil)
	}
	yamlText, err := plan.Marshal(res.Document)
	if err != nil {
		return FallbackRationale(v, other, res.Document)
	}
	out, err := g.backend.Draft(ctx, buildRationalePrompt(v, other, string(yamlText)))
	if err != nil {
		g.log.Warn("rationale call failed, using fallback", "variant", v.Label, "error", err)
		return FallbackRationale(v, other, res.Document)
	}
	out = strings.TrimSpace(out)
	if !plausibleRationale(out) {
		return FallbackRationale(v, other, res.Document)
	}
	return out
}

func plausibleRationale(s string) bool {
	return s != "" &&
		len(s) <= maxRationaleLen &&
		!strings.Contains(s, "```") &&
		!strings.Contains(s, "plans:")
}

// FallbackRationale opens with how v is framed against other, then
// summarizes tier mix and price span.
func FallbackRationale(v, other Variant, doc *plan.PlanDocument) string {
	framing := fmt.Sprintf("• Variant %s is %s, versus variant %s's %s framing.", v.Label, v.Framing, other.Label, other.Framing)
	if doc == nil || len(doc.Plans) == 0 {
		return framing + "\n• No valid plan document was produced for this variant; see warnings."
	}

	var tiers []string
	seen := make(map[string]bool)
	minPrice, maxPrice := -1.0, 0.0
	currency := ""
	for _, p := range doc.Plans {
		if p.Tier != "" && !seen[strings.ToLower(p.Tier)] {
			seen[strings.ToLower(p.Tier)] = true
			tiers = append(tiers, p.Tier)
		}
		if p.Price == nil || p.Price.Monthly == nil {
			continue
		}
		m := *p.Price.Monthly
		if minPrice < 0 || m < minPrice {
			minPrice = m
		}
		if m > maxPrice {
			maxPrice = m
		}
		if currency == "" {
			currency = p.Price.Currency
		}
	}

	lines := []string{framing, fmt.Sprintf("• Mix of tiers (%s) from affordable to premium to cover audience breadth.", strings.Join(tiers, ", "))}
	if minPrice >= 0 {
		span := fmt.Sprintf("• Pricing spectrum spans %.2f to %.2f", minPrice, maxPrice)
		if currency != "" {
			span += " " + currency
		}
		lines = append(lines, span+".")
	}
	return strings.Join(lines, "\n")
}
