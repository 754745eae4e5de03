package extraction

import (
	"context"
	"fmt"
	"strings"

	"casework/internal/casefile"
)

type route struct {
	prefix string
	ex     Extractor
}

// Router dispatches a document to an extractor by media type. Routes are
// matched in registration order by media type prefix, so "image/" covers
// every image format.
type Router struct {
	routes   []route
	fallback Extractor
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithFallback sets the extractor used when no route matches.
func WithFallback(ex Extractor) RouterOption {
	return func(r *Router) {
		r.fallback = ex
	}
}

// NewRouter constructs an empty router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Handle registers an extractor for a media type prefix.
func (r *Router) Handle(prefix string, ex Extractor) *Router {
	r.routes = append(r.routes, route{prefix: strings.ToLower(prefix), ex: ex})
	return r
}

func (r *Router) Extract(ctx context.Context, doc Document) (casefile.Fields, error) {
	mt := doc.MediaType()
	for _, rt := range r.routes {
		if strings.HasPrefix(mt, rt.prefix) {
			return rt.ex.Extract(ctx, doc)
		}
	}
	if r.fallback != nil {
		return r.fallback.Extract(ctx, doc)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mt)
}
