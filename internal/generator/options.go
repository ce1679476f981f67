package generator

import (
	"errors"
	"fmt"
)

// MaxAttemptsLimit caps the per-request attempt override.
const MaxAttemptsLimit = 6

var ErrInvalidOptions = errors.New("invalid generation options")

// Options carries the per-call settings of one generation.
type Options struct {
	MaxAttempts int
	Examples    int
	EnableAB    bool
	// Metadata is merged into every parsed candidate before validation.
	Metadata map[string]any
}

func DefaultOptions() Options {
	return Options{MaxAttempts: 3, Examples: 3, EnableAB: true}
}

func (o Options) Validate() error {
	if o.MaxAttempts < 1 || o.MaxAttempts > MaxAttemptsLimit {
		return fmt.Errorf("%w: max attempts must be between 1 and %d, got %d", ErrInvalidOptions, MaxAttemptsLimit, o.MaxAttempts)
	}
	if o.Examples < 0 {
		return fmt.Errorf("%w: examples must not be negative, got %d", ErrInvalidOptions, o.Examples)
	}
	return nil
}

// withMetadata returns a copy of o whose metadata also holds extra.
func (o Options) withMetadata(extra map[string]any) Options {
	merged := make(map[string]any, len(o.Metadata)+len(extra))
	for k, v := range o.Metadata {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	o.Metadata = merged
	return o
}
