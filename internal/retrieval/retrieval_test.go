package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plandraft/internal/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(examples []plan.Example) []string {
	out := make([]string, 0, len(examples))
	for _, ex := range examples {
		out = append(out, ex.ID)
	}
	return out
}

func TestDefaultCorpus_ExamplesAreValidPlans(t *testing.T) {
	c, err := DefaultCorpus()
	require.NoError(t, err)
	require.Equal(t, 8, c.Len())

	v := plan.NewValidator(plan.DefaultRules())
	for _, ex := range c.Examples() {
		doc := &plan.PlanDocument{Version: plan.SchemaVersion, Plans: []plan.Plan{ex.Plan}}
		assert.Empty(t, v.Validate(doc), ex.ID)
	}
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "corpus.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"a","title":"A","notes":"n","plan":{"id":"a","tier":"Basic"}}]`), 0644))

	c, err := LoadCorpus(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	dupPath := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dupPath, []byte("- id: a\n- id: a\n"), 0644))
	_, err = LoadCorpus(dupPath)
	assert.ErrorContains(t, err, "duplicate example id")

	c, err = LoadCorpus("")
	require.NoError(t, err)
	assert.Equal(t, 8, c.Len())
}

func TestKeywordRetriever(t *testing.T) {
	c, err := DefaultCorpus()
	require.NoError(t, err)
	r := NewKeywordRetriever(c)
	ctx := context.Background()

	got, err := r.Retrieve(ctx, "Launch family plans with sports", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "us-family-sports", got[0].ID)

	got, err = r.Retrieve(ctx, "", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"us-holiday-basic", "us-family-sports", "uk-standard-ad-free"}, ids(got))

	got, err = r.Retrieve(ctx, "zzzz qqqq", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"us-holiday-basic", "us-family-sports"}, ids(got))

	got, err = r.Retrieve(ctx, "anime", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.Retrieve(ctx, "anime", 50)
	require.NoError(t, err)
	assert.Equal(t, "jp-anime-standard", got[0].ID)
}

func TestKeywordRetriever_Deterministic(t *testing.T) {
	c, err := DefaultCorpus()
	require.NoError(t, err)
	r := NewKeywordRetriever(c)

	first, err := r.Retrieve(context.Background(), "holiday season plans", 4)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Retrieve(context.Background(), "holiday season plans", 4)
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
	}
}

type fakeEmbedder struct {
	fail  bool
	calls int
}

// Embeds on three axes: sports, anime, everything else.
func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fail {
		return nil, errors.New("quota exceeded")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lt := strings.ToLower(t)
		v := []float32{0, 0, 0.1}
		if strings.Contains(lt, "sports") {
			v[0] = 1
		}
		if strings.Contains(lt, "anime") {
			v[1] = 1
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func TestSemanticRetriever(t *testing.T) {
	c, err := DefaultCorpus()
	require.NoError(t, err)
	emb := &fakeEmbedder{}
	r := NewSemanticRetriever(c, emb, nil, nil)

	got, err := r.Retrieve(context.Background(), "anime fans", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"jp-anime-standard"}, ids(got))

	got, err = r.Retrieve(context.Background(), "sports", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"us-family-sports"}, ids(got))

	// corpus embedded once, plus one call per brief
	assert.Equal(t, 3, emb.calls)
}

func TestSemanticRetriever_FallsBackToKeyword(t *testing.T) {
	c, err := DefaultCorpus()
	require.NoError(t, err)
	r := NewSemanticRetriever(c, &fakeEmbedder{fail: true}, nil, nil)

	got, err := r.Retrieve(context.Background(), "anime", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"jp-anime-standard"}, ids(got))
}

func TestSemanticRetriever_CancelledFirstCallerStillBuildsIndex(t *testing.T) {
	c, err := DefaultCorpus()
	require.NoError(t, err)
	emb := &fakeEmbedder{}
	r := NewSemanticRetriever(c, emb, nil, nil)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Retrieve(cancelled, "anime", 1)
	require.NoError(t, err)
	// corpus embedded, brief embedding refused
	assert.Equal(t, 2, emb.calls)

	got, err := r.Retrieve(context.Background(), "sports", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"us-family-sports"}, ids(got))
	assert.Equal(t, 3, emb.calls)
}

func TestSemanticRetriever_RebuildsAfterFailedBuild(t *testing.T) {
	c, err := DefaultCorpus()
	require.NoError(t, err)
	emb := &fakeEmbedder{fail: true}
	r := NewSemanticRetriever(c, emb, nil, nil)

	got, err := r.Retrieve(context.Background(), "anime", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"jp-anime-standard"}, ids(got))
	assert.Equal(t, 1, emb.calls)

	// Within the backoff window the failed build is not retried.
	emb.fail = false
	_, err = r.Retrieve(context.Background(), "sports", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)

	r.retryBackoff = 0
	got, err = r.Retrieve(context.Background(), "sports", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"us-family-sports"}, ids(got))
	// rebuild plus brief
	assert.Equal(t, 3, emb.calls)
}

func TestMemoryIndex(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Add(
		VectorItem{Index: 0, Embedding: []float32{1, 0}},
		VectorItem{Index: 1, Embedding: []float32{0, 1}},
		VectorItem{Index: 2, Embedding: []float32{1, 1}},
	)
	hits := idx.Search([]float32{1, 0.1}, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Index)
	assert.Equal(t, 2, hits[1].Index)

	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestNewRetriever(t *testing.T) {
	c, err := DefaultCorpus()
	require.NoError(t, err)

	r, err := NewRetriever(context.Background(), c, EmbedderOptions{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &KeywordRetriever{}, r)

	r, err = NewRetriever(context.Background(), c, EmbedderOptions{Provider: "ollama"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SemanticRetriever{}, r)

	_, err = NewRetriever(context.Background(), c, EmbedderOptions{Provider: "word2vec"}, nil)
	assert.Error(t, err)
}

func TestPromptContext(t *testing.T) {
	assert.Equal(t, "No reference examples available.", PromptContext(nil))

	c, err := DefaultCorpus()
	require.NoError(t, err)
	out := PromptContext(c.Examples()[:2])
	assert.True(t, strings.HasPrefix(out, "Reference OTT plan examples:\n- US Holiday Basic (US)"))
	assert.Contains(t, out, "add-ons: Sports Pack, Kids Profiles")
}
