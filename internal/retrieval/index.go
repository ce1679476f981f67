package retrieval

import (
	"math"
	"sort"
	"sync"
)

// VectorItem pairs a corpus position with its embedding.
type VectorItem struct {
	Index     int
	Embedding []float32
}

// MemoryIndex is an in-memory cosine-similarity index.
type MemoryIndex struct {
	mu    sync.RWMutex
	items []VectorItem
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Add(items ...VectorItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Search returns up to topK items ordered by descending similarity; ties keep
// insertion order.
func (m *MemoryIndex) Search(query []float32, topK int) []VectorItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type candidate struct {
		item  VectorItem
		score float32
	}
	candidates := make([]candidate, 0, len(m.items))
	for _, it := range m.items {
		candidates = append(candidates, candidate{item: it, score: cosineSimilarity(query, it.Embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if topK >= 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]VectorItem, len(candidates))
	for i, c := range candidates {
		out[i] = c.item
	}
	return out
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}
