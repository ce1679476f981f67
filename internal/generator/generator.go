package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plandraft/internal/drafting"
	"plandraft/internal/logger"
	"plandraft/internal/plan"
	"plandraft/internal/retrieval"

	"github.com/google/uuid"
)

var ErrEmptyBrief = errors.New("brief is empty")

// Attempt records one draft-parse-validate pass.
type Attempt struct {
	Index      int                   `json:"index"`
	RawDraft   string                `json:"raw_draft"`
	ParseError string                `json:"parse_error,omitempty"`
	Errors     plan.ValidationErrors `json:"errors,omitempty"`
	Duration   time.Duration         `json:"duration_ns"`
}

func (a Attempt) Valid() bool {
	return a.ParseError == "" && len(a.Errors) == 0
}

// Result is the outcome of one Generate call. A result with warnings is
// degraded but still usable; see Err.
type Result struct {
	ID         string             `json:"id"`
	Document   *plan.PlanDocument `json:"document"`
	RawDraft   string             `json:"raw_draft"`
	Warnings   []string           `json:"warnings"`
	Advisories []string           `json:"advisories"`
	Attempts   int                `json:"attempts"`
	Final      Attempt            `json:"final"`
	History    []Attempt          `json:"history"`

	exhausted *ExhaustedError
}

// Accepted reports whether the final attempt produced a valid document.
func (r *Result) Accepted() bool {
	return r.exhausted == nil
}

// Err returns the *ExhaustedError of a degraded result and nil otherwise.
func (r *Result) Err() error {
	if r.exhausted == nil {
		return nil
	}
	return r.exhausted
}

// ExhaustedError means every attempt failed validation. Candidate is the
// latest parsed document, or nil when nothing parsed.
type ExhaustedError struct {
	Attempts  int
	Candidate *plan.PlanDocument
	History   []Attempt
}

func (e *ExhaustedError) Error() string {
	last := e.History[len(e.History)-1]
	if e.Candidate == nil {
		return fmt.Sprintf("no parseable document after %d attempts (last: %s)", e.Attempts, last.ParseError)
	}
	return fmt.Sprintf("no valid document after %d attempts (%d unresolved errors)", e.Attempts, len(last.Errors))
}

// Generator drives the draft, parse, validate and repair loop. It keeps no
// per-request state and may be shared across goroutines.
type Generator struct {
	backend   drafting.Backend
	retriever retrieval.Retriever
	validator *plan.Validator
	log       *logger.Logger
}

func New(backend drafting.Backend, retriever retrieval.Retriever, validator *plan.Validator, log *logger.Logger) *Generator {
	if validator == nil {
		validator = plan.NewValidator(plan.DefaultRules())
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Generator{backend: backend, retriever: retriever, validator: validator, log: log}
}

// Generate drafts a document for brief, repairing it at most
// opts.MaxAttempts-1 times. Backend failures are returned as
// *drafting.BackendError and are never retried; running out of attempts is
// not an error here but is reported through the result.
func (g *Generator) Generate(ctx context.Context, brief string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(brief) == "" {
		return nil, ErrEmptyBrief
	}

	res := &Result{ID: uuid.NewString()}
	log := g.log.With("generation_id", res.ID)
	examples := g.examples(ctx, log, brief, opts.Examples)

	var (
		candidate        *plan.PlanDocument
		candidateAttempt = -1
		prevDraft        string
		prevErrors       []string
	)
	for k := 0; k < opts.MaxAttempts; k++ {
		prompt := BuildPrompt(PromptInput{
			Brief:         brief,
			Examples:      examples,
			Rules:         g.validator.Rules(),
			Attempt:       k,
			PreviousDraft: prevDraft,
			PriorErrors:   prevErrors,
		})

		start := time.Now()
		raw, err := g.backend.Draft(ctx, prompt)
		if err != nil {
			log.Warn("drafting backend failed", "attempt", k+1, "backend", g.backend.Name(), "error", err)
			return nil, drafting.Classify(err)
		}

		attempt := Attempt{Index: k, RawDraft: raw}
		doc, perr := plan.ParseDraft(raw)
		if perr != nil {
			attempt.ParseError = perr.Error()
			attempt.Errors = plan.ValidationErrors{{
				Path:    "document",
				Message: perr.Error(),
				Kind:    plan.KindStructural,
			}}
		} else {
			doc.MergeMetadata(opts.Metadata)
			attempt.Errors = g.validator.Validate(doc)
			candidate, candidateAttempt = doc, k
		}
		attempt.Duration = time.Since(start)
		res.History = append(res.History, attempt)
		log.Info("draft attempt finished",
			"attempt", k+1,
			"parsed", perr == nil,
			"errors", len(attempt.Errors),
			"duration", attempt.Duration,
		)

		if attempt.Valid() {
			res.Document = doc
			res.RawDraft = raw
			res.Warnings = []string{}
			res.Advisories = g.validator.Advise(doc)
			res.Attempts = k + 1
			res.Final = attempt
			return res, nil
		}
		prevDraft = raw
		prevErrors = attempt.Errors.Messages()
	}

	res.Attempts = opts.MaxAttempts
	res.Final = res.History[len(res.History)-1]
	res.exhausted = &ExhaustedError{Attempts: res.Attempts, Candidate: candidate, History: res.History}
	res.Document = candidate
	if candidate != nil {
		res.RawDraft = res.History[candidateAttempt].RawDraft
		res.Advisories = g.validator.Advise(candidate)
		res.Warnings = exhaustedWarnings(res.Attempts, candidateAttempt, res.History[candidateAttempt].Errors)
	} else {
		res.RawDraft = res.Final.RawDraft
		res.Advisories = []string{}
		res.Warnings = exhaustedWarnings(res.Attempts, -1, res.Final.Errors)
	}
	log.Warn("generation exhausted", "attempts", res.Attempts, "has_candidate", candidate != nil)
	return res, nil
}

func (g *Generator) examples(ctx context.Context, log *logger.Logger, brief string, k int) []plan.Example {
	if g.retriever == nil || k == 0 {
		return nil
	}
	examples, err := g.retriever.Retrieve(ctx, brief, k)
	if err != nil {
		log.Warn("example retrieval failed, drafting without examples", "error", err)
		return nil
	}
	return examples
}

func exhaustedWarnings(attempts, candidateAttempt int, errs plan.ValidationErrors) []string {
	var head string
	if candidateAttempt < 0 {
		head = fmt.Sprintf("No parseable document after %d attempts.", attempts)
	} else {
		head = fmt.Sprintf("No valid document after %d attempts; returning the draft from attempt %d with unresolved errors.", attempts, candidateAttempt+1)
	}
	return append([]string{head}, errs.Messages()...)
}
