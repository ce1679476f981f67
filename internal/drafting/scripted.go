package drafting

import (
	"context"
	"sync"
	"time"
)

// ScriptedBackend replays completions in order and records every prompt it
// receives. It is safe for concurrent use.
type ScriptedBackend struct {
	// Delay, when set, is waited out before each reply and honors ctx.
	Delay time.Duration

	mu        sync.Mutex
	responses []string
	cursor    int
	prompts   []string
}

func NewScriptedBackend(responses ...string) *ScriptedBackend {
	return &ScriptedBackend{responses: responses}
}

func (s *ScriptedBackend) Name() string { return "scripted" }

func (s *ScriptedBackend) Draft(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	if s.cursor >= len(s.responses) {
		s.mu.Unlock()
		return "", &BackendError{Kind: KindUnavailable, Detail: "scripted backend exhausted responses"}
	}
	out := s.responses[s.cursor]
	s.cursor++
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", Classify(ctx.Err())
		case <-time.After(s.Delay):
		}
	}
	return out, nil
}

// Prompts returns a copy of the prompts received so far.
func (s *ScriptedBackend) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func (s *ScriptedBackend) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// OfflinePlanYAML is served by StaticBackend when no model provider is usable.
const OfflinePlanYAML = `version: "1.0"
plans:
  - id: "dev-basic"
    name: "Developer Basic"
    region: "Local"
    tier: "Basic"
    price:
      monthly: 9.0
      currency: "USD"
    device_limit: 1
    video_quality: "HD"
    add_ons: []
metadata:
  note: "Fallback static plan because real LLM is unavailable."
`

// StaticBackend answers every prompt with the same text.
type StaticBackend struct {
	text string
}

func NewStaticBackend(text string) *StaticBackend {
	if text == "" {
		text = OfflinePlanYAML
	}
	return &StaticBackend{text: text}
}

func (s *StaticBackend) Name() string { return "offline" }

func (s *StaticBackend) Draft(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", Classify(err)
	}
	return s.text, nil
}
