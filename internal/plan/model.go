package plan

import (
	"fmt"
	"strings"
)

// SchemaVersion is the document version written when a draft omits one.
const SchemaVersion = "1.0"

// PlanDocument is the root of a drafted subscription-plan proposal.
// Plans are kept in presentation order.
type PlanDocument struct {
	Version  string         `yaml:"version" json:"version"`
	Plans    []Plan         `yaml:"plans" json:"plans"`
	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Plan is a single subscription offer. Numeric fields are pointers so the
// validator can tell a missing value from a zero one.
type Plan struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	Region       string  `yaml:"region" json:"region"`
	Tier         string  `yaml:"tier" json:"tier"`
	Price        *Price  `yaml:"price" json:"price"`
	DeviceLimit  *int    `yaml:"device_limit" json:"device_limit"`
	VideoQuality string  `yaml:"video_quality" json:"video_quality"`
	AddOns       []AddOn `yaml:"add_ons,omitempty" json:"add_ons,omitempty"`
	Description  string  `yaml:"description,omitempty" json:"description,omitempty"`
}

type Price struct {
	Monthly  *float64 `yaml:"monthly" json:"monthly"`
	Currency string   `yaml:"currency" json:"currency"`
}

// AddOn has no identity beyond its position inside the owning plan.
type AddOn struct {
	Name        string   `yaml:"name" json:"name"`
	PriceDelta  *float64 `yaml:"price_delta" json:"price_delta"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// Example is a curated, known-valid plan used to ground drafting.
type Example struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Notes string `yaml:"notes" json:"notes"`
	Plan  Plan   `yaml:"plan" json:"plan"`
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Amount returns a pointer to v.
func Amount(v float64) *float64 { return &v }

// Rationale returns the free-text rationale stored in the metadata, if any.
func (d *PlanDocument) Rationale() string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata["rationale"].(string); ok {
		return s
	}
	return ""
}

// MergeMetadata copies extra into the document metadata, overwriting existing keys.
func (d *PlanDocument) MergeMetadata(extra map[string]any) {
	if d == nil || len(extra) == 0 {
		return
	}
	if d.Metadata == nil {
		d.Metadata = make(map[string]any, len(extra))
	}
	for k, v := range extra {
		d.Metadata[k] = v
	}
}

// MonthlyPrice returns the monthly amount or 0 when unset.
func (p Plan) MonthlyPrice() float64 {
	if p.Price == nil || p.Price.Monthly == nil {
		return 0
	}
	return *p.Price.Monthly
}

// Currency returns the price currency or "" when unset.
func (p Plan) Currency() string {
	if p.Price == nil {
		return ""
	}
	return p.Price.Currency
}

// PromptSnippet renders the example as a compact bullet for prompts.
func (e Example) PromptSnippet() string {
	p := e.Plan
	addOns := make([]string, 0, len(p.AddOns))
	for _, a := range p.AddOns {
		addOns = append(addOns, a.Name)
	}
	addOnSummary := strings.Join(addOns, ", ")
	if addOnSummary == "" {
		addOnSummary = "None"
	}
	devices := 0
	if p.DeviceLimit != nil {
		devices = *p.DeviceLimit
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "- %s (%s)\n", e.Title, p.Region)
	fmt.Fprintf(&sb, "  tier: %s, devices: %d, quality: %s\n", p.Tier, devices, p.VideoQuality)
	fmt.Fprintf(&sb, "  price: %.2f %s, add-ons: %s\n", p.MonthlyPrice(), p.Currency(), addOnSummary)
	fmt.Fprintf(&sb, "  notes: %s", e.Notes)
	return sb.String()
}
