package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"

	"plandraft/internal/plan"
)

// KeywordRetriever ranks examples by query-token overlap over an inverted
// index of title, region, tier and notes.
type KeywordRetriever struct {
	corpus   *Corpus
	inverted map[string][]int
	texts    []string
}

func NewKeywordRetriever(c *Corpus) *KeywordRetriever {
	r := &KeywordRetriever{
		corpus:   c,
		inverted: make(map[string][]int),
		texts:    make([]string, len(c.examples)),
	}
	for i, ex := range c.examples {
		text := searchText(ex)
		r.texts[i] = strings.ToLower(text)
		seen := make(map[string]bool)
		for _, tok := range tokenize(text) {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			r.inverted[tok] = append(r.inverted[tok], i)
		}
	}
	return r
}

func (r *KeywordRetriever) Retrieve(_ context.Context, brief string, k int) ([]plan.Example, error) {
	if k <= 0 {
		return nil, nil
	}
	if strings.TrimSpace(brief) == "" {
		return r.corpus.head(k), nil
	}

	tokens := tokenize(brief)
	candidates := make(map[int]bool)
	for _, tok := range tokens {
		for _, idx := range r.inverted[tok] {
			candidates[idx] = true
		}
	}
	if len(candidates) == 0 {
		return r.corpus.head(k), nil
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for idx := range candidates {
		ranked = append(ranked, scored{idx: idx, score: r.score(idx, tokens)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].idx < ranked[j].idx
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]plan.Example, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, r.corpus.examples[s.idx])
	}
	return out, nil
}

// score counts substring occurrences, so "us" also matches inside "plus".
func (r *KeywordRetriever) score(idx int, tokens []string) float64 {
	text := r.texts[idx]
	score := 0.0
	for _, tok := range tokens {
		if n := strings.Count(text, tok); n > 0 {
			score += 1 + math.Log1p(float64(n))
		}
	}
	if dl := r.corpus.examples[idx].Plan.DeviceLimit; dl != nil {
		score += 0.1 * float64(*dl)
	}
	return score
}
