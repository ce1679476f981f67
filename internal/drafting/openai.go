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

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultGitHubBaseURL  = "https://api.githubcopilot.com"
	githubAPIVersion      = "2023-12-01"
)

// OpenAIBackend drafts through an OpenAI-compatible chat completions endpoint.
// GitHub Models is served by the same client with extra headers.
type OpenAIBackend struct {
	client      *http.Client
	name        string
	apiKey      string
	model       string
	endpoint    string
	temperature float64
	headers     map[string]string
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewOpenAIBackend(apiKey, model, baseURL string, temperature float64) *OpenAIBackend {
	endpoint := strings.TrimSpace(baseURL)
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	return &OpenAIBackend{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		name:        "openai",
		apiKey:      apiKey,
		model:       model,
		endpoint:    chatEndpoint(endpoint),
		temperature: temperature,
	}
}

// NewGitHubModelsBackend targets the GitHub Models chat completions API.
func NewGitHubModelsBackend(token, model, baseURL string, temperature float64) *OpenAIBackend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultGitHubBaseURL
	}
	b := NewOpenAIBackend(token, model, baseURL, temperature)
	b.name = "github"
	b.headers = map[string]string{
		"Accept":               "application/json",
		"X-GitHub-Api-Version": githubAPIVersion,
		"User-Agent":           "plandraft",
	}
	return b
}

func chatEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(endpoint, "/chat/completions") {
		return endpoint
	}
	if strings.HasSuffix(endpoint, "/v1") {
		return endpoint + "/chat/completions"
	}
	return endpoint + "/v1/chat/completions"
}

func (b *OpenAIBackend) Name() string { return b.name }

func (b *OpenAIBackend) Draft(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(b.apiKey) == "" {
		return "", &BackendError{Kind: KindAuth, Detail: b.name + " api key is required"}
	}
	if strings.TrimSpace(b.model) == "" {
		return "", &BackendError{Kind: KindUnavailable, Detail: b.name + " model is required"}
	}

	reqBody := openAIChatRequest{
		Model: b.model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: b.temperature,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", Classify(fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", Classify(err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", Classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Classify(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var errBody openAIErrorBody
		if json.Unmarshal(raw, &errBody) == nil && strings.TrimSpace(errBody.Error.Message) != "" {
			msg = strings.TrimSpace(errBody.Error.Message)
		}
		return "", Classify(&StatusError{Provider: b.name, Code: resp.StatusCode, Body: msg})
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &BackendError{Kind: KindUnavailable, Detail: fmt.Sprintf("unexpected %s response format", b.name), Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &BackendError{Kind: KindUnavailable, Detail: b.name + " returned no choices"}
	}
	return parsed.Choices[0].Message.Content, nil
}
