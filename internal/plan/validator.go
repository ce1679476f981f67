package plan

import (
	"fmt"
	"math"
	"strings"
)

// RuleKind separates shape problems from violated business policy.
type RuleKind string

const (
	KindStructural   RuleKind = "structural"
	KindBusinessRule RuleKind = "business-rule"
)

// ValidationError locates one violation inside a document.
type ValidationError struct {
	Path    string   `json:"path"`
	Message string   `json:"message"`
	Kind    RuleKind `json:"kind"`
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors is the ordered result of one validation pass.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	return strings.Join(v.Messages(), "; ")
}

// Messages renders every error as "path: message".
func (v ValidationErrors) Messages() []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		out = append(out, e.Error())
	}
	return out
}

// ByKind filters the errors down to a single rule kind.
func (v ValidationErrors) ByKind(kind RuleKind) ValidationErrors {
	var out ValidationErrors
	for _, e := range v {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Validator checks candidate documents against the schema and a rule table.
// It holds no per-call state and is safe for concurrent use.
type Validator struct {
	rules    RuleSet
	compiled compiledRules
}

func NewValidator(rules RuleSet) *Validator {
	return &Validator{rules: rules, compiled: compileRules(rules)}
}

// Rules returns the rule table the validator enforces.
func (v *Validator) Rules() RuleSet {
	return v.rules
}

// Validate runs every check in a fixed order: structural, referential, then
// business rules. Plans are visited in document order and fields in declared
// order, so the same input always yields the same sequence. It never stops at
// the first violation.
func (v *Validator) Validate(doc *PlanDocument) ValidationErrors {
	var errs ValidationErrors
	if doc == nil {
		return append(errs, structural("document", "document is required"))
	}

	errs = v.checkStructure(doc, errs)
	errs = v.checkReferences(doc, errs)
	errs = v.checkBusinessRules(doc, errs)
	return errs
}

func (v *Validator) checkStructure(doc *PlanDocument, errs ValidationErrors) ValidationErrors {
	if strings.TrimSpace(doc.Version) == "" {
		errs = append(errs, structural("version", "is required"))
	}
	if len(doc.Plans) == 0 {
		return append(errs, structural("plans", "at least one plan is required"))
	}

	for i, p := range doc.Plans {
		base := fmt.Sprintf("plans[%d]", i)
		errs = requireText(errs, base+".id", p.ID)
		errs = requireText(errs, base+".name", p.Name)
		errs = requireText(errs, base+".region", p.Region)
		errs = requireText(errs, base+".tier", p.Tier)

		if p.Price == nil {
			errs = append(errs, structural(base+".price", "is required"))
		} else {
			errs = requireAmount(errs, base+".price.monthly", p.Price.Monthly)
			errs = requireText(errs, base+".price.currency", p.Price.Currency)
		}

		switch {
		case p.DeviceLimit == nil:
			errs = append(errs, structural(base+".device_limit", "is required"))
		case *p.DeviceLimit < 1:
			errs = append(errs, structural(base+".device_limit", fmt.Sprintf("must be a positive integer, got %d", *p.DeviceLimit)))
		}

		errs = requireText(errs, base+".video_quality", p.VideoQuality)

		for j, a := range p.AddOns {
			addOn := fmt.Sprintf("%s.add_ons[%d]", base, j)
			errs = requireText(errs, addOn+".name", a.Name)
			errs = requireAmount(errs, addOn+".price_delta", a.PriceDelta)
		}
	}
	return errs
}

func (v *Validator) checkReferences(doc *PlanDocument, errs ValidationErrors) ValidationErrors {
	firstSeen := make(map[string]int, len(doc.Plans))
	for i, p := range doc.Plans {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		if j, ok := firstSeen[id]; ok {
			errs = append(errs, structural(
				fmt.Sprintf("plans[%d].id", i),
				fmt.Sprintf("duplicate plan id %q (first used by plans[%d])", id, j),
			))
			continue
		}
		firstSeen[id] = i
	}
	return errs
}

func (v *Validator) checkBusinessRules(doc *PlanDocument, errs ValidationErrors) ValidationErrors {
	for i, p := range doc.Plans {
		base := fmt.Sprintf("plans[%d]", i)

		tier, known := v.compiled.tier(p.Tier)
		if strings.TrimSpace(p.Tier) != "" && !known {
			errs = append(errs, business(base+".tier",
				fmt.Sprintf("tier %q is not one of: %s", p.Tier, v.compiled.tierList)))
		}

		if p.Price != nil {
			if m := p.Price.Monthly; m != nil && *m == 0 {
				errs = append(errs, business(base+".price.monthly", "monthly price must be greater than zero"))
			}
			if c := p.Price.Currency; strings.TrimSpace(c) != "" && !v.compiled.currencyAllowed(c) {
				errs = append(errs, business(base+".price.currency",
					fmt.Sprintf("currency %q is not a recognized ISO-4217 code", c)))
			}
		}

		if known && p.DeviceLimit != nil {
			if msg := deviceLimitViolation(tier, *p.DeviceLimit); msg != "" {
				errs = append(errs, business(base+".device_limit", msg))
			}
		}

		if q := p.VideoQuality; strings.TrimSpace(q) != "" && !v.compiled.qualities[normalizeKey(q)] {
			errs = append(errs, business(base+".video_quality",
				fmt.Sprintf("video quality %q is not one of: %s", q, v.compiled.qualList)))
		}
	}
	return errs
}

func deviceLimitViolation(t TierRule, limit int) string {
	switch {
	case t.MinDevices == t.MaxDevices && limit != t.MaxDevices:
		return fmt.Sprintf("%s tier requires exactly %d %s, got %d", t.Tier, t.MaxDevices, devicesWord(t.MaxDevices), limit)
	case limit > t.MaxDevices:
		return fmt.Sprintf("%s tier allows at most %d %s, got %d", t.Tier, t.MaxDevices, devicesWord(t.MaxDevices), limit)
	case limit < t.MinDevices:
		return fmt.Sprintf("%s tier requires at least %d %s, got %d", t.Tier, t.MinDevices, devicesWord(t.MinDevices), limit)
	}
	return ""
}

func devicesWord(n int) string {
	if n == 1 {
		return "device"
	}
	return "devices"
}

func requireText(errs ValidationErrors, path, value string) ValidationErrors {
	if strings.TrimSpace(value) == "" {
		return append(errs, structural(path, "is required"))
	}
	return errs
}

func requireAmount(errs ValidationErrors, path string, value *float64) ValidationErrors {
	switch {
	case value == nil:
		return append(errs, structural(path, "is required"))
	case math.IsNaN(*value) || math.IsInf(*value, 0):
		return append(errs, structural(path, "must be a finite number"))
	case *value < 0:
		return append(errs, structural(path, fmt.Sprintf("must be a non-negative number, got %g", *value)))
	}
	return errs
}

func structural(path, msg string) ValidationError {
	return ValidationError{Path: path, Message: msg, Kind: KindStructural}
}

func business(path, msg string) ValidationError {
	return ValidationError{Path: path, Message: msg, Kind: KindBusinessRule}
}
