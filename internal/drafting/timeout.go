package drafting

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type timeoutBackend struct {
	next    Backend
	timeout time.Duration
}

// WithTimeout bounds every Draft call on b. A deadline hit is reported as a
// KindTimeout BackendError.
func WithTimeout(b Backend, d time.Duration) Backend {
	if d <= 0 {
		return b
	}
	return &timeoutBackend{next: b, timeout: d}
}

func (t *timeoutBackend) Name() string { return t.next.Name() }

func (t *timeoutBackend) Draft(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.next.Draft(callCtx, prompt)
	if err == nil {
		return out, nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", &BackendError{
			Kind:   KindTimeout,
			Detail: fmt.Sprintf("%s gave no response within %s", t.next.Name(), t.timeout),
			Err:    err,
		}
	}
	return "", Classify(err)
}
