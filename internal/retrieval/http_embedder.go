package retrieval

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
	openAIEmbedBatchSize = 64
	ollamaEmbedBatchSize = 64
)

// OpenAIEmbedder implements Embedder against an OpenAI-compatible
// /v1/embeddings endpoint.
type OpenAIEmbedder struct {
	client    *http.Client
	apiKey    string
	model     string
	dimension int
	endpoint  string
}

type openAIEmbeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions *int     `json:"dimensions,omitempty"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewOpenAIEmbedder(apiKey, model string, dim int, baseURL string) *OpenAIEmbedder {
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case endpoint == "":
		endpoint = "https://api.openai.com/v1/embeddings"
	case strings.HasSuffix(endpoint, "/embeddings"):
	case strings.HasSuffix(endpoint, "/v1"):
		endpoint += "/embeddings"
	default:
		endpoint += "/v1/embeddings"
	}
	return &OpenAIEmbedder{
		client:    &http.Client{Timeout: 60 * time.Second},
		apiKey:    apiKey,
		model:     model,
		dimension: dim,
		endpoint:  endpoint,
	}
}

func (o *OpenAIEmbedder) Dimension() int { return o.dimension }

func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.TrimSpace(o.apiKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	out := make([][]float32, 0, len(texts))
	err := forEachBatch(texts, openAIEmbedBatchSize, func(batch []string) error {
		payload := openAIEmbeddingRequest{Model: o.model, Input: batch}
		if o.dimension > 0 {
			payload.Dimensions = &o.dimension
		}
		var parsed openAIEmbeddingResponse
		headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
		if err := postJSON(ctx, o.client, o.endpoint, headers, payload, &parsed); err != nil {
			return fmt.Errorf("openai embeddings: %w", err)
		}
		if len(parsed.Data) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(parsed.Data), len(batch))
		}
		vecs := make([][]float32, len(batch))
		for _, item := range parsed.Data {
			if item.Index >= 0 && item.Index < len(batch) {
				vecs[item.Index] = item.Embedding
			}
		}
		for i := range vecs {
			if len(vecs[i]) == 0 {
				return fmt.Errorf("embedding missing at index %d", i)
			}
		}
		out = append(out, vecs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OllamaEmbedder implements Embedder against a local Ollama /api/embed.
type OllamaEmbedder struct {
	client    *http.Client
	model     string
	dimension int
	endpoint  string
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewOllamaEmbedder(model string, dim int, baseURL string) *OllamaEmbedder {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = "http://127.0.0.1:11434"
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, "/api/embed") {
		url += "/api/embed"
	}
	return &OllamaEmbedder{
		client:    &http.Client{Timeout: 90 * time.Second},
		model:     model,
		dimension: dim,
		endpoint:  url,
	}
}

func (o *OllamaEmbedder) Dimension() int { return o.dimension }

func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.TrimSpace(o.model) == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	out := make([][]float32, 0, len(texts))
	err := forEachBatch(texts, ollamaEmbedBatchSize, func(batch []string) error {
		var parsed ollamaEmbedResponse
		if err := postJSON(ctx, o.client, o.endpoint, nil, ollamaEmbedRequest{Model: o.model, Input: batch}, &parsed); err != nil {
			return fmt.Errorf("ollama embed: %w", err)
		}
		if len(parsed.Embeddings) != len(batch) {
			return fmt.Errorf("ollama embedding count mismatch: got %d, expected %d", len(parsed.Embeddings), len(batch))
		}
		out = append(out, parsed.Embeddings...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if o.dimension <= 0 && len(out) > 0 {
		o.dimension = len(out[0])
	}
	return out, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, into any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, into)
}

func forEachBatch(texts []string, size int, fn func(batch []string) error) error {
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		if err := fn(texts[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func waitOrCancel(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
