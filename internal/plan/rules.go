package plan

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/currency"
)

// TierRule bounds the device limit of every plan in a tier.
// MinDevices == MaxDevices means the tier requires exactly that many devices.
type TierRule struct {
	Tier       string `yaml:"tier" json:"tier"`
	MinDevices int    `yaml:"min_devices" json:"min_devices"`
	MaxDevices int    `yaml:"max_devices" json:"max_devices"`
}

// RuleSet is the business-rule table the validator enforces. It is data so the
// tier catalogue can change without code changes.
type RuleSet struct {
	Tiers          []TierRule `yaml:"tiers" json:"tiers"`
	VideoQualities []string   `yaml:"video_qualities" json:"video_qualities"`
	// Currencies restricts accepted codes further; empty accepts any ISO-4217 code.
	Currencies []string `yaml:"currencies,omitempty" json:"currencies,omitempty"`
}

// DefaultRules is the rule table used when configuration supplies none.
func DefaultRules() RuleSet {
	return RuleSet{
		Tiers: []TierRule{
			{Tier: "Basic", MinDevices: 1, MaxDevices: 1},
			{Tier: "Mobile", MinDevices: 1, MaxDevices: 1},
			{Tier: "Standard", MinDevices: 1, MaxDevices: 2},
			{Tier: "Premium", MinDevices: 1, MaxDevices: 4},
			{Tier: "Family", MinDevices: 2, MaxDevices: 6},
		},
		VideoQualities: []string{"SD", "HD", "FHD", "UHD", "4K"},
	}
}

// Check reports malformed rule tables.
func (r RuleSet) Check() error {
	if len(r.Tiers) == 0 {
		return fmt.Errorf("rule set must define at least one tier")
	}
	seen := make(map[string]bool, len(r.Tiers))
	for _, t := range r.Tiers {
		key := normalizeKey(t.Tier)
		if key == "" {
			return fmt.Errorf("tier name is required")
		}
		if seen[key] {
			return fmt.Errorf("duplicate tier rule: %s", t.Tier)
		}
		seen[key] = true
		if t.MinDevices < 1 {
			return fmt.Errorf("tier %s: min_devices must be at least 1", t.Tier)
		}
		if t.MaxDevices < t.MinDevices {
			return fmt.Errorf("tier %s: max_devices must be >= min_devices", t.Tier)
		}
	}
	if len(r.VideoQualities) == 0 {
		return fmt.Errorf("rule set must define at least one video quality")
	}
	for _, c := range r.Currencies {
		if !isISOCurrency(c) {
			return fmt.Errorf("currency %q is not a recognized ISO-4217 code", c)
		}
	}
	return nil
}

// TierNames lists the configured tier names in declared order.
func (r RuleSet) TierNames() []string {
	out := make([]string, 0, len(r.Tiers))
	for _, t := range r.Tiers {
		out = append(out, t.Tier)
	}
	return out
}

type compiledRules struct {
	tiers      map[string]TierRule
	qualities  map[string]bool
	currencies map[string]bool
	tierList   string
	qualList   string
}

func compileRules(r RuleSet) compiledRules {
	c := compiledRules{
		tiers:     make(map[string]TierRule, len(r.Tiers)),
		qualities: make(map[string]bool, len(r.VideoQualities)),
	}
	for _, t := range r.Tiers {
		c.tiers[normalizeKey(t.Tier)] = t
	}
	for _, q := range r.VideoQualities {
		c.qualities[normalizeKey(q)] = true
	}
	if len(r.Currencies) > 0 {
		c.currencies = make(map[string]bool, len(r.Currencies))
		for _, code := range r.Currencies {
			c.currencies[strings.ToUpper(strings.TrimSpace(code))] = true
		}
	}
	c.tierList = strings.Join(r.TierNames(), ", ")
	quals := append([]string(nil), r.VideoQualities...)
	sort.Strings(quals)
	c.qualList = strings.Join(quals, ", ")
	return c
}

func (c compiledRules) tier(name string) (TierRule, bool) {
	t, ok := c.tiers[normalizeKey(name)]
	return t, ok
}

func (c compiledRules) currencyAllowed(code string) bool {
	if !isISOCurrency(code) {
		return false
	}
	if c.currencies == nil {
		return true
	}
	return c.currencies[code]
}

// nonTenderCodes are ISO-4217 units no plan can be priced in: the test and
// no-currency codes, precious metals, and settlement units.
var nonTenderCodes = map[string]bool{
	"XXX": true, "XTS": true,
	"XAU": true, "XAG": true, "XPT": true, "XPD": true,
	"XDR": true, "XSU": true, "XUA": true,
	"XBA": true, "XBB": true, "XBC": true, "XBD": true,
}

// isISOCurrency accepts exactly three upper-case letters naming a known
// ISO-4217 unit that is legal tender somewhere.
func isISOCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	if nonTenderCodes[code] {
		return false
	}
	_, err := currency.ParseISO(code)
	return err == nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
