package drafting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindAuth        Kind = "auth"
	KindUnavailable Kind = "unavailable"
)

// BackendError means the drafting call itself failed, as opposed to the model
// producing unusable output.
type BackendError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *BackendError) Error() string {
	if e.Detail == "" && e.Err != nil {
		return fmt.Sprintf("drafting backend %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("drafting backend %s: %s", e.Kind, e.Detail)
}

func (e *BackendError) Unwrap() error { return e.Err }

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed (%d): %s", e.Provider, e.Code, e.Body)
}

// Classify maps an arbitrary backend failure onto a BackendError. A nil error
// yields nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}

	kind := KindUnavailable
	var (
		statusErr *StatusError
		apiErr    *genai.APIError
		netErr    net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &statusErr):
		kind = kindForStatus(statusErr.Code)
	case errors.As(err, &apiErr):
		kind = kindForStatus(apiErr.Code)
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &BackendError{Kind: kind, Detail: strings.TrimSpace(err.Error()), Err: err}
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return KindAuth
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnavailable
	}
}

// IsKind reports whether err is a BackendError of the given kind.
func IsKind(err error, kind Kind) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == kind
}
