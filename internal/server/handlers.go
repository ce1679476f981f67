package server

import (
	"net/http"

	"plandraft/internal/generator"
	"plandraft/internal/plan"

	"github.com/gin-gonic/gin"
)

// Handler serves plan generation over HTTP. Options are the configured
// defaults; requests may only narrow max_attempts and add metadata.
type Handler struct {
	gen  *generator.Generator
	opts generator.Options
}

func NewHandler(gen *generator.Generator, opts generator.Options) *Handler {
	return &Handler{gen: gen, opts: opts}
}

type GenerateRequest struct {
	Prompt      string         `json:"prompt" binding:"required,min=5"`
	MaxAttempts *int           `json:"max_attempts" binding:"omitempty,min=1,max=6"`
	Metadata    map[string]any `json:"metadata"`
}

type GenerateResponse struct {
	ID         string             `json:"id"`
	Document   *plan.PlanDocument `json:"document"`
	YAML       string             `json:"yaml"`
	RawDraft   string             `json:"raw_draft"`
	Warnings   []string           `json:"warnings"`
	Advisories []string           `json:"advisories"`
	Attempts   int                `json:"attempts"`
}

type ProposalResponse struct {
	Label     string             `json:"label"`
	Focus     string             `json:"focus"`
	Document  *plan.PlanDocument `json:"document"`
	YAML      string             `json:"yaml"`
	RawDraft  string             `json:"raw_draft"`
	Warnings  []string           `json:"warnings"`
	Rationale string             `json:"rationale"`
}

type GenerateABResponse struct {
	Proposals []ProposalResponse `json:"proposals"`
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok", "ab_testing": h.opts.EnableAB})
}

// POST /generate
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := h.gen.Generate(c.Request.Context(), req.Prompt, h.requestOptions(req))
	if err != nil {
		respondGenerationError(c, err)
		return
	}
	RespondOK(c, GenerateResponse{
		ID:         res.ID,
		Document:   res.Document,
		YAML:       canonicalYAML(res.Document),
		RawDraft:   res.RawDraft,
		Warnings:   res.Warnings,
		Advisories: res.Advisories,
		Attempts:   res.Attempts,
	})
}

// POST /generate-ab
func (h *Handler) GenerateAB(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	ab, err := h.gen.GenerateAB(c.Request.Context(), req.Prompt, h.requestOptions(req))
	if err != nil {
		respondGenerationError(c, err)
		return
	}
	out := GenerateABResponse{Proposals: make([]ProposalResponse, 0, len(ab.Proposals))}
	for _, p := range ab.Proposals {
		out.Proposals = append(out.Proposals, ProposalResponse{
			Label:     p.Label,
			Focus:     p.Focus,
			Document:  p.Result.Document,
			YAML:      canonicalYAML(p.Result.Document),
			RawDraft:  p.Result.RawDraft,
			Warnings:  p.Result.Warnings,
			Rationale: p.Rationale,
		})
	}
	RespondOK(c, out)
}

func (h *Handler) requestOptions(req GenerateRequest) generator.Options {
	opts := h.opts
	if req.MaxAttempts != nil {
		opts.MaxAttempts = *req.MaxAttempts
	}
	if len(req.Metadata) > 0 {
		opts.Metadata = req.Metadata
	}
	return opts
}

func canonicalYAML(doc *plan.PlanDocument) string {
	if doc == nil {
		return ""
	}
	b, err := plan.Marshal(doc)
	if err != nil {
		return ""
	}
	return string(b)
}
