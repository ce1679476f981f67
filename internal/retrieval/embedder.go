package retrieval

import (
	"context"
	"fmt"
	"strings"

	"plandraft/internal/logger"
)

// Embedder converts text to vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type EmbedderOptions struct {
	Provider  string
	APIKey    string
	Model     string
	Dimension int
	BaseURL   string
}

var defaultEmbeddingModels = map[string]string{
	"gemini": "gemini-embedding-001",
	"openai": "text-embedding-3-small",
	"ollama": "nomic-embed-text",
}

func NewEmbedder(ctx context.Context, opts EmbedderOptions) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	model := opts.Model
	if model == "" {
		model = defaultEmbeddingModels[provider]
	}

	switch provider {
	case "gemini":
		return NewGeminiEmbedder(ctx, opts.APIKey, model, opts.Dimension)
	case "openai":
		return NewOpenAIEmbedder(opts.APIKey, model, opts.Dimension, opts.BaseURL), nil
	case "ollama":
		return NewOllamaEmbedder(model, opts.Dimension, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", opts.Provider)
	}
}

// NewRetriever picks semantic retrieval when an embedding provider is
// configured and keyword retrieval otherwise.
func NewRetriever(ctx context.Context, c *Corpus, opts EmbedderOptions, log *logger.Logger) (Retriever, error) {
	keyword := NewKeywordRetriever(c)
	if strings.TrimSpace(opts.Provider) == "" || strings.EqualFold(opts.Provider, "none") {
		return keyword, nil
	}
	emb, err := NewEmbedder(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewSemanticRetriever(c, emb, keyword, log), nil
}
