package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxSnippetRunes = 160

// ParseError reports drafted text that could not be decoded into a document.
type ParseError struct {
	Reason  string
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet == "" {
		return "parse error: " + e.Reason
	}
	return fmt.Sprintf("parse error: %s (near %q)", e.Reason, e.Snippet)
}

var (
	fencedBlockRe = regexp.MustCompile("(?ms)^[ \\t]*```[ \\t]*([A-Za-z0-9_+-]*)[ \\t]*\\r?\\n(.*?)^[ \\t]*```")
	bareStartRe   = regexp.MustCompile(`(?m)^(version|plans|metadata)[ \t]*:|^\{`)
)

// ParseDraft extracts the single structured block from a drafted response and
// decodes it. Commentary around a fenced block is ignored; more than one
// structured block is rejected. Only syntax and field types are checked here.
func ParseDraft(raw string) (*PlanDocument, error) {
	block, err := extractBlock(raw)
	if err != nil {
		return nil, err
	}
	return decodeBlock(block)
}

func extractBlock(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", &ParseError{Reason: "draft is empty"}
	}

	var blocks []string
	for _, m := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		switch strings.ToLower(m[1]) {
		case "", "yaml", "yml", "json":
			blocks = append(blocks, m[2])
		}
	}
	switch {
	case len(blocks) == 1:
		return blocks[0], nil
	case len(blocks) > 1:
		return "", &ParseError{
			Reason:  fmt.Sprintf("expected exactly one structured block, found %d", len(blocks)),
			Snippet: snippet(text),
		}
	}

	// An opening fence the model never closed.
	if strings.HasPrefix(text, "```") && !strings.Contains(text[3:], "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			return text[nl+1:], nil
		}
		return "", &ParseError{Reason: "fenced block has no content", Snippet: snippet(text)}
	}

	loc := bareStartRe.FindStringIndex(text)
	if loc == nil {
		return "", &ParseError{Reason: "no structured plan block found", Snippet: snippet(text)}
	}
	return text[loc[0]:], nil
}

func decodeBlock(block string) (*PlanDocument, error) {
	dec := yaml.NewDecoder(strings.NewReader(block))
	dec.KnownFields(true)

	var doc PlanDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Reason: "structured block is empty"}
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, &ParseError{
				Reason:  "type mismatch: " + strings.Join(typeErr.Errors, "; "),
				Snippet: snippet(block),
			}
		}
		return nil, &ParseError{Reason: "invalid YAML: " + err.Error(), Snippet: snippet(block)}
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Reason: "expected a single YAML document", Snippet: snippet(block)}
	}

	if err := checkIntegerFields(block); err != nil {
		return nil, err
	}

	normalize(&doc)
	return &doc, nil
}

// checkIntegerFields rejects non-integer device limits. yaml.v3 truncates a
// float into an int field, which would turn 1.9 devices into 1.
func checkIntegerFields(block string) error {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(block), &root); err != nil || len(root.Content) == 0 {
		return nil
	}
	plans := mappingValue(root.Content[0], "plans")
	if plans == nil || plans.Kind != yaml.SequenceNode {
		return nil
	}
	for i, p := range plans.Content {
		v := mappingValue(p, "device_limit")
		if v == nil || v.Kind != yaml.ScalarNode {
			continue
		}
		switch v.ShortTag() {
		case "!!int", "!!null":
		default:
			return &ParseError{
				Reason:  fmt.Sprintf("type mismatch: plans[%d].device_limit must be an integer, got %q", i, v.Value),
				Snippet: snippet(block),
			}
		}
	}
	return nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// normalize applies the coercions decoding leaves open: a default version and
// nil for empty optional collections.
func normalize(doc *PlanDocument) {
	if strings.TrimSpace(doc.Version) == "" {
		doc.Version = SchemaVersion
	}
	if len(doc.Metadata) == 0 {
		doc.Metadata = nil
	}
	for i := range doc.Plans {
		if len(doc.Plans[i].AddOns) == 0 {
			doc.Plans[i].AddOns = nil
		}
	}
}

// Marshal serializes a document to the YAML wire format ParseDraft reads.
func Marshal(doc *PlanDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("plan document is nil")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > maxSnippetRunes {
		return string(r[:maxSnippetRunes]) + "..."
	}
	return s
}
