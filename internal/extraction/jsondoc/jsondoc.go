// Package jsondoc reads documents that arrive already extracted as a JSON
// field map, either bare or wrapped as {"fields": {...}}.
package jsondoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"casework/internal/casefile"
	"casework/internal/extraction"
)

// Extractor decodes a JSON object into a field map.
type Extractor struct{}

func New() Extractor {
	return Extractor{}
}

func (Extractor) Extract(ctx context.Context, doc extraction.Document) (casefile.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(doc.Kind, doc.Data)
}

// Parse decodes raw JSON bytes. Numbers are kept as json.Number so integral
// fields survive the typed decode without float rounding.
func Parse(kind casefile.Kind, data []byte) (casefile.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, extraction.NewExtractionError(kind, extraction.ErrorBadData, "document is not a JSON object", err)
	}
	if inner, ok := raw["fields"].(map[string]any); ok && len(raw) == 1 {
		raw = inner
	}
	if len(raw) == 0 {
		return nil, extraction.NewExtractionError(kind, extraction.ErrorBadData, "document has no fields", nil)
	}
	return casefile.Fields(raw), nil
}

// MarshalFields is the inverse of Parse, used by tooling that writes
// extracted documents to disk.
func MarshalFields(fields casefile.Fields) ([]byte, error) {
	b, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return b, nil
}
