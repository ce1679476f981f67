package drafting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaBackend drafts against a local Ollama server.
type OllamaBackend struct {
	client      *http.Client
	model       string
	endpoint    string
	temperature float64
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func NewOllamaBackend(model, baseURL string, temperature float64) *OllamaBackend {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = "http://127.0.0.1:11434"
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, "/api/generate") {
		url += "/api/generate"
	}

	return &OllamaBackend{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		model:       model,
		endpoint:    url,
		temperature: temperature,
	}
}

func (o *OllamaBackend) Name() string { return "ollama" }

func (o *OllamaBackend) Draft(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(o.model) == "" {
		return "", &BackendError{Kind: KindUnavailable, Detail: "ollama model is required"}
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		System:  systemPrompt,
		Stream:  false,
		Options: map[string]any{"temperature": o.temperature},
	})
	if err != nil {
		return "", Classify(fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", Classify(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", Classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Classify(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", Classify(&StatusError{Provider: "ollama", Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))})
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &BackendError{Kind: KindUnavailable, Detail: "unexpected ollama response format", Err: err}
	}
	if parsed.Error != "" {
		return "", &BackendError{Kind: KindUnavailable, Detail: parsed.Error}
	}
	return parsed.Response, nil
}
