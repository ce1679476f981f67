package generator

import (
	"fmt"
	"strings"

	"plandraft/internal/plan"
	"plandraft/internal/retrieval"
)

// PromptInput is everything a drafting prompt is built from.
type PromptInput struct {
	Brief    string
	Examples []plan.Example
	Rules    plan.RuleSet
	// Attempt is zero-based. Later attempts carry the previous draft and the
	// errors found in it.
	Attempt       int
	PreviousDraft string
	PriorErrors   []string
}

const promptSeparator = "\n---\n"

const basePrompt = `Role: Pricing strategist for a video streaming service.
Task: Draft subscription plan proposals as a single YAML document.
Answer with exactly one fenced ` + "```yaml" + ` block and no other structured blocks.
Every plan needs a unique id, a name, a region, a tier, a monthly price with an
ISO-4217 currency code, a device limit and a video quality.`

// BuildPrompt assembles the drafting prompt. It has no side effects.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString(promptSeparator)
	sb.WriteString("User brief:\n")
	sb.WriteString(strings.TrimSpace(in.Brief))
	sb.WriteString(promptSeparator)
	sb.WriteString(retrieval.PromptContext(in.Examples))
	sb.WriteString(promptSeparator)
	sb.WriteString(SchemaSummary(in.Rules))

	if in.Attempt > 0 {
		sb.WriteString(promptSeparator)
		fmt.Fprintf(&sb, "Attempt %d. Previous YAML (failed validation):\n", in.Attempt+1)
		prev := strings.TrimSpace(in.PreviousDraft)
		if prev == "" {
			prev = "(empty response)"
		}
		sb.WriteString(prev)
		sb.WriteString("\n\nValidation feedback:\n")
		if len(in.PriorErrors) == 0 {
			sb.WriteString("- Invalid output.\n")
		}
		for _, e := range in.PriorErrors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
		sb.WriteString("Fix exactly these issues and keep everything else unchanged. Return the complete corrected YAML document.")
	} else {
		sb.WriteString("\nDraft fresh YAML plan proposals adhering to the schema.")
	}
	return sb.String()
}

// SchemaSummary describes the document shape and the active rule table.
func SchemaSummary(rules plan.RuleSet) string {
	var sb strings.Builder
	sb.WriteString("YAML Schema (simplified view):\n")
	sb.WriteString(`version: "` + plan.SchemaVersion + `"
plans:
  - id: string (unique)
    name: string
    region: string
    tier: string
    price:
      monthly: number > 0
      currency: ISO-4217 code
    device_limit: integer >= 1
    video_quality: string
    add_ons:
      - name: string
        price_delta: number >= 0
    description: string (optional)
metadata:
  rationale: string (optional)
`)
	sb.WriteString("\nTier device limits:\n")
	for _, t := range rules.Tiers {
		if t.MinDevices == t.MaxDevices {
			fmt.Fprintf(&sb, "- %s: exactly %d\n", t.Tier, t.MaxDevices)
			continue
		}
		fmt.Fprintf(&sb, "- %s: %d to %d\n", t.Tier, t.MinDevices, t.MaxDevices)
	}
	if len(rules.VideoQualities) > 0 {
		fmt.Fprintf(&sb, "Video qualities: %s\n", strings.Join(rules.VideoQualities, ", "))
	}
	if len(rules.Currencies) > 0 {
		fmt.Fprintf(&sb, "Currencies: %s\n", strings.Join(rules.Currencies, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func buildRationalePrompt(v, other Variant, yamlText string) string {
	var sb strings.Builder
	sb.WriteString("You are reviewing a streaming subscription plan proposal.\n")
	fmt.Fprintf(&sb, "Variant %s is %s: %s\n", v.Label, v.Framing, v.Focus)
	fmt.Fprintf(&sb, "Variant %s is %s: %s\n", other.Label, other.Framing, other.Focus)
	fmt.Fprintf(&sb, "Variant %s YAML:\n```yaml\n%s\n```\n", v.Label, strings.TrimSpace(yamlText))
	fmt.Fprintf(&sb, "Write 2 bullet sentences for stakeholders: the core positioning of variant %s, and how its framing differs from variant %s. Plain text only.", v.Label, other.Label)
	return sb.String()
}
