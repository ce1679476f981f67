package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plandraft/internal/logger"
	"plandraft/internal/plan"
)

// SemanticRetriever ranks examples by embedding similarity to the brief. The
// corpus is embedded on first use and kept once a build succeeds; a failed
// build is retried after retryBackoff. Any embedding failure degrades to the
// fallback retriever.
type SemanticRetriever struct {
	corpus   *Corpus
	embedder Embedder
	fallback Retriever
	log      *logger.Logger

	buildTimeout time.Duration
	retryBackoff time.Duration

	mu        sync.Mutex
	index     *MemoryIndex
	lastErr   error
	lastTryAt time.Time
}

const (
	defaultIndexBuildTimeout = 2 * time.Minute
	defaultIndexRetryBackoff = 30 * time.Second
)

func NewSemanticRetriever(c *Corpus, emb Embedder, fallback Retriever, log *logger.Logger) *SemanticRetriever {
	if log == nil {
		log = logger.NewNop()
	}
	if fallback == nil {
		fallback = NewKeywordRetriever(c)
	}
	return &SemanticRetriever{
		corpus:       c,
		embedder:     emb,
		fallback:     fallback,
		log:          log,
		buildTimeout: defaultIndexBuildTimeout,
		retryBackoff: defaultIndexRetryBackoff,
	}
}

func (s *SemanticRetriever) Retrieve(ctx context.Context, brief string, k int) ([]plan.Example, error) {
	if k <= 0 {
		return nil, nil
	}
	idx, err := s.ensureIndex(ctx)
	if err != nil {
		s.log.Warn("semantic index unavailable, using keyword retrieval", "error", err)
		return s.fallback.Retrieve(ctx, brief, k)
	}

	vecs, err := s.embedder.Embed(ctx, []string{brief})
	if err != nil || len(vecs) != 1 {
		s.log.Warn("failed to embed brief, using keyword retrieval", "error", err)
		return s.fallback.Retrieve(ctx, brief, k)
	}

	hits := idx.Search(vecs[0], k)
	out := make([]plan.Example, 0, len(hits))
	for _, h := range hits {
		out = append(out, s.corpus.examples[h.Index])
	}
	return out, nil
}

// ensureIndex builds the corpus index detached from the caller's
// cancellation, so one aborted request cannot poison it.
func (s *SemanticRetriever) ensureIndex(ctx context.Context) (*MemoryIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		return s.index, nil
	}
	if s.lastErr != nil && time.Since(s.lastTryAt) < s.retryBackoff {
		return nil, s.lastErr
	}

	buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.buildTimeout)
	defer cancel()

	s.lastTryAt = time.Now()
	idx, err := s.buildIndex(buildCtx)
	if err != nil {
		s.lastErr = err
		return nil, err
	}
	s.index, s.lastErr = idx, nil
	s.log.Info("semantic index built", "examples", idx.Len(), "dimension", s.embedder.Dimension())
	return idx, nil
}

func (s *SemanticRetriever) buildIndex(ctx context.Context) (*MemoryIndex, error) {
	texts := make([]string, len(s.corpus.examples))
	for i, ex := range s.corpus.examples {
		texts[i] = searchText(ex)
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed corpus: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vecs), len(texts))
	}
	idx := NewMemoryIndex()
	for i, v := range vecs {
		idx.Add(VectorItem{Index: i, Embedding: v})
	}
	return idx, nil
}
