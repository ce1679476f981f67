package retrieval

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"plandraft/internal/plan"

	"gopkg.in/yaml.v3"
)

// Retriever returns grounding examples for a brief, best first. An empty
// result is valid.
type Retriever interface {
	Retrieve(ctx context.Context, brief string, k int) ([]plan.Example, error)
}

//go:embed seed_corpus.yaml
var seedCorpus []byte

// Corpus is the read-only example set shared by all requests.
type Corpus struct {
	examples []plan.Example
}

func NewCorpus(examples []plan.Example) *Corpus {
	return &Corpus{examples: append([]plan.Example(nil), examples...)}
}

// DefaultCorpus returns the embedded seed corpus.
func DefaultCorpus() (*Corpus, error) {
	return decodeCorpus(seedCorpus, false)
}

// LoadCorpus reads a YAML or JSON list of examples. An empty path loads the
// embedded seed corpus.
func LoadCorpus(path string) (*Corpus, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCorpus()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	c, err := decodeCorpus(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode corpus %s: %w", path, err)
	}
	return c, nil
}

func decodeCorpus(data []byte, isJSON bool) (*Corpus, error) {
	var examples []plan.Example
	var err error
	if isJSON {
		err = json.Unmarshal(data, &examples)
	} else {
		err = yaml.Unmarshal(data, &examples)
	}
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(examples))
	for i, ex := range examples {
		if ex.ID == "" {
			return nil, fmt.Errorf("example %d has no id", i)
		}
		if seen[ex.ID] {
			return nil, fmt.Errorf("duplicate example id %q", ex.ID)
		}
		seen[ex.ID] = true
	}
	return &Corpus{examples: examples}, nil
}

func (c *Corpus) Len() int { return len(c.examples) }

// Examples returns a copy of the corpus in file order.
func (c *Corpus) Examples() []plan.Example {
	return append([]plan.Example(nil), c.examples...)
}

func (c *Corpus) head(k int) []plan.Example {
	if k > len(c.examples) {
		k = len(c.examples)
	}
	if k <= 0 {
		return nil
	}
	return append([]plan.Example(nil), c.examples[:k]...)
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z]+`)

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		out = append(out, strings.ToLower(t))
	}
	return out
}

// searchText is the text indexed and embedded for an example.
func searchText(ex plan.Example) string {
	return strings.Join([]string{ex.Title, ex.Plan.Region, ex.Plan.Tier, ex.Notes}, " ")
}

// PromptContext renders retrieved examples as a prompt section.
func PromptContext(examples []plan.Example) string {
	if len(examples) == 0 {
		return "No reference examples available."
	}
	var sb strings.Builder
	sb.WriteString("Reference OTT plan examples:\n")
	for i, ex := range examples {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(ex.PromptSnippet())
	}
	return sb.String()
}
