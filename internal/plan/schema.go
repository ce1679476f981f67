package plan

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://plandraft.local/schema/plan_document.schema.json"

//go:embed schema/plan_document.schema.json
var schemaJSON []byte

var (
	schemaMu       sync.Mutex
	compiledSchema *jsonschema.Schema
)

// SchemaJSON returns the JSON Schema describing the document wire format.
func SchemaJSON() []byte {
	return append([]byte(nil), schemaJSON...)
}

// SchemaCheck validates a document against the embedded JSON Schema. It is the
// export gate for documents leaving the process; drafting feedback comes from
// Validator, whose errors are ordered and addressable.
func SchemaCheck(doc *PlanDocument) error {
	if doc == nil {
		return fmt.Errorf("plan document is nil")
	}
	schema, err := loadCompiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile plan document schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal plan document for schema validation: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to normalize plan document for schema validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("plan document schema validation failed: %w", err)
	}
	return nil
}

// SaveDocument writes a schema-checked document to path, as JSON when the
// extension is .json and YAML otherwise.
func SaveDocument(path string, doc *PlanDocument) error {
	if err := SchemaCheck(doc); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	var (
		b   []byte
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		b, err = json.MarshalIndent(doc, "", "  ")
		b = append(b, '\n')
	} else {
		b, err = Marshal(doc)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// LoadDocument reads a YAML or JSON document from disk without validating it.
func LoadDocument(path string) (*PlanDocument, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDraft(string(b))
}

func loadCompiledSchema() (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if compiledSchema != nil {
		return compiledSchema, nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, err
	}
	compiledSchema = compiled
	return compiled, nil
}
