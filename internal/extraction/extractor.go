// Package extraction turns the four raw application documents into typed
// records. Each document is handled by an Extractor; the Coordinator runs
// them in parallel and records per-document failures without aborting.
package extraction

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"casework/internal/casefile"
)

// Document is one uploaded file, tagged with the kind the applicant submitted it as.
type Document struct {
	Kind        casefile.Kind
	Filename    string
	ContentType string
	Data        []byte
}

var extensionTypes = map[string]string{
	".csv":  "text/csv",
	".json": "application/json",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// MediaType returns the document's media type without parameters, falling
// back to the filename extension when no content type was supplied.
func (d Document) MediaType() string {
	ct := d.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(d.Filename))
		if byExt, ok := extensionTypes[ext]; ok {
			ct = byExt
		} else if byExt := mime.TypeByExtension(ext); byExt != "" {
			ct = byExt
		}
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// Extractor converts one document into a raw field map.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (casefile.Fields, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, doc Document) (casefile.Fields, error)

func (f ExtractorFunc) Extract(ctx context.Context, doc Document) (casefile.Fields, error) {
	return f(ctx, doc)
}

// Registry maps each document kind to the extractor responsible for it.
type Registry struct {
	extractors map[casefile.Kind]Extractor
}

// NewRegistry creates a new empty registry
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[casefile.Kind]Extractor),
	}
}

// Register binds an extractor to a document kind.
func (r *Registry) Register(kind casefile.Kind, ex Extractor) error {
	if !kind.IsValid() {
		return fmt.Errorf("register extractor: unknown document kind %q", kind)
	}
	if ex == nil {
		return fmt.Errorf("register extractor for %s: extractor is required", kind)
	}
	if _, exists := r.extractors[kind]; exists {
		return fmt.Errorf("extractor for %s already registered", kind)
	}
	r.extractors[kind] = ex
	return nil
}

// Get retrieves the extractor for a kind.
func (r *Registry) Get(kind casefile.Kind) (Extractor, error) {
	ex, ok := r.extractors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExtractorNotFound, kind)
	}
	return ex, nil
}
