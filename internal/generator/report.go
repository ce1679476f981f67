package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"plandraft/internal/plan"
)

type ReportSignal struct {
	Code     string `json:"code"`
	Stage    string `json:"stage"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type AttemptMetric struct {
	Index            int      `json:"index"`
	Status           string   `json:"status"`
	DurationMS       int64    `json:"duration_ms"`
	StructuralErrors int      `json:"structural_errors"`
	BusinessErrors   int      `json:"business_errors"`
	Errors           []string `json:"errors,omitempty"`
}

type ReportSummary struct {
	Accepted          bool           `json:"accepted"`
	Attempts          int            `json:"attempts"`
	ParseFailures     int            `json:"parse_failures"`
	HasDocument       bool           `json:"has_document"`
	Plans             int            `json:"plans"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// Report is a JSON-friendly account of one generation, for offline review of
// how the repair loop behaved.
type Report struct {
	Version      string          `json:"version"`
	GenerationID string          `json:"generation_id"`
	GeneratedAt  string          `json:"generated_at"`
	Attempts     []AttemptMetric `json:"attempts"`
	Signals      []ReportSignal  `json:"signals,omitempty"`
	Summary      ReportSummary   `json:"summary"`
}

func NewReport(res *Result) *Report {
	r := &Report{
		Version:      "v1",
		GenerationID: res.ID,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Attempts:     make([]AttemptMetric, 0, len(res.History)),
	}

	parseFailures := 0
	for _, a := range res.History {
		m := AttemptMetric{
			Index:            a.Index,
			Status:           "valid",
			DurationMS:       a.Duration.Milliseconds(),
			StructuralErrors: len(a.Errors.ByKind(plan.KindStructural)),
			BusinessErrors:   len(a.Errors.ByKind(plan.KindBusinessRule)),
			Errors:           a.Errors.Messages(),
		}
		stage := fmt.Sprintf("attempt-%d", a.Index+1)
		switch {
		case a.ParseError != "":
			m.Status = "unparseable"
			parseFailures++
			r.addSignal("parse_failed", stage, "warning", a.ParseError)
		case len(a.Errors) > 0:
			m.Status = "invalid"
			if m.BusinessErrors > 0 {
				r.addSignal("business_rules", stage, "warning", fmt.Sprintf("%d business-rule violation(s)", m.BusinessErrors))
			}
			if m.StructuralErrors > 0 {
				r.addSignal("structure", stage, "warning", fmt.Sprintf("%d structural problem(s)", m.StructuralErrors))
			}
		}
		r.Attempts = append(r.Attempts, m)
	}
	if !res.Accepted() {
		r.addSignal("exhausted", "result", "critical", fmt.Sprintf("no valid document after %d attempts", res.Attempts))
	}
	for _, a := range res.Advisories {
		r.addSignal("advisory", "result", "info", a)
	}

	sort.SliceStable(r.Signals, func(i, j int) bool {
		return signalPriority(r.Signals[i].Severity) > signalPriority(r.Signals[j].Severity)
	})
	bySeverity := map[string]int{"critical": 0, "warning": 0, "info": 0}
	for _, s := range r.Signals {
		bySeverity[s.Severity]++
	}

	r.Summary = ReportSummary{
		Accepted:          res.Accepted(),
		Attempts:          res.Attempts,
		ParseFailures:     parseFailures,
		HasDocument:       res.Document != nil,
		SignalsBySeverity: bySeverity,
	}
	if res.Document != nil {
		r.Summary.Plans = len(res.Document.Plans)
	}
	return r
}

func (r *Report) addSignal(code, stage, severity, message string) {
	r.Signals = append(r.Signals, ReportSignal{Code: code, Stage: stage, Severity: severity, Message: message})
}

func (r *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	default:
		return 1
	}
}
