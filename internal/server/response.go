package server

import (
	"errors"
	"net/http"

	"plandraft/internal/drafting"
	"plandraft/internal/generator"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondGenerationError maps generator failures onto HTTP statuses. Degraded
// results never get here; they are 200s with warnings.
func respondGenerationError(c *gin.Context, err error) {
	var be *drafting.BackendError
	switch {
	case errors.As(err, &be):
		RespondError(c, http.StatusServiceUnavailable, "backend_"+string(be.Kind), err)
	case errors.Is(err, generator.ErrABDisabled):
		RespondError(c, http.StatusConflict, "ab_disabled", err)
	case errors.Is(err, generator.ErrEmptyBrief), errors.Is(err, generator.ErrInvalidOptions):
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
	default:
		RespondError(c, http.StatusInternalServerError, "generation_failed", err)
	}
}
