package vision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casework/internal/casefile"
	"casework/internal/extraction"
)

type stubGenerator struct {
	text  string
	err   error
	parts []genai.Part
}

func (g *stubGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	g.parts = parts
	if g.err != nil {
		return nil, g.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(g.text)}},
		}},
	}, nil
}

func newExtractor(gen Generator) *Extractor {
	return New(gen, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestExtractImage(t *testing.T) {
	gen := &stubGenerator{text: "```json\n{\"name\": \"Omar Haddad\", \"emirates_id\": \"784-1990-1234567-1\", \"has_disability\": false}\n```"}
	fields, err := newExtractor(gen).Extract(context.Background(), extraction.Document{
		Kind:        casefile.KindEmiratesID,
		ContentType: "image/jpeg",
		Data:        []byte{0xff, 0xd8},
	})
	require.NoError(t, err)
	assert.Equal(t, "Omar Haddad", fields["name"])

	require.Len(t, gen.parts, 2)
	blob, ok := gen.parts[0].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", blob.MIMEType)

	doc, err := casefile.Decode(casefile.KindEmiratesID, fields)
	require.NoError(t, err)
	id := doc.(casefile.EmiratesID)
	require.NotNil(t, id.HasDisability)
	assert.False(t, *id.HasDisability)
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name     string
		gen      *stubGenerator
		doc      extraction.Document
		category extraction.ErrorCategory
	}{
		{
			name:     "unsupported media type",
			gen:      &stubGenerator{},
			doc:      extraction.Document{Kind: casefile.KindEmiratesID, ContentType: "application/zip"},
			category: extraction.ErrorUnsupported,
		},
		{
			name:     "model outage",
			gen:      &stubGenerator{err: errors.New("503 from vertex")},
			doc:      extraction.Document{Kind: casefile.KindEmiratesID, ContentType: "image/png"},
			category: extraction.ErrorProviderOutage,
		},
		{
			name:     "non json answer",
			gen:      &stubGenerator{text: "I cannot read this document"},
			doc:      extraction.Document{Kind: casefile.KindEmiratesID, ContentType: "image/png"},
			category: extraction.ErrorBadData,
		},
		{
			name:     "empty answer",
			gen:      &stubGenerator{text: "   "},
			doc:      extraction.Document{Kind: casefile.KindEmiratesID, ContentType: "image/png"},
			category: extraction.ErrorBadData,
		},
		{
			name:     "corrupt pdf",
			gen:      &stubGenerator{},
			doc:      extraction.Document{Kind: casefile.KindCreditReport, ContentType: "application/pdf", Data: []byte("not a pdf")},
			category: extraction.ErrorBadData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newExtractor(tt.gen).Extract(context.Background(), tt.doc)
			require.Error(t, err)
			assert.Equal(t, tt.category, extraction.Classify(tt.doc.Kind, err).Category)
		})
	}
}
