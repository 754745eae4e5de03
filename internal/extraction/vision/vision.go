// Package vision extracts scanned documents (ID card images, credit report
// PDFs) with a Gemini model on Vertex AI. The model is asked for a JSON object
// whose keys follow the document kind's schema.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"casework/internal/casefile"
	"casework/internal/extraction"
)

const systemPrompt = "You are a document data extraction engine for a social support programme. " +
	"Read the supplied document and return a single JSON object with exactly the requested keys. " +
	"Use null for any value that is not present in the document. Never guess values."

var userPrompts = map[casefile.Kind]string{
	casefile.KindEmiratesID: `Extract the identity card fields as JSON with keys:
name, emirates_id, date_of_birth (YYYY-MM-DD), nationality, gender, employment_status, marital_status, has_disability (boolean), address.`,
	casefile.KindCreditReport: `Extract the credit report fields as JSON with keys:
applicant_name, emirates_id, credit_score (integer), total_credit_limit, total_outstanding, monthly_income_reported, housing_type, delinquencies (integer count of delinquent accounts).`,
	casefile.KindBankStatement: `Extract the bank statement as JSON with keys:
account_holder, emirates_id, bank_name, transactions (array of {date YYYY-MM-DD, description, category, amount signed with credits positive, balance}).`,
	casefile.KindAssetsLiabilities: `Extract the assets and liabilities declaration as JSON with keys:
assets (array of {name, value}), liabilities (array of {name, value}), declared_monthly_income, family_size (integer), housing_type.`,
}

// Generator is the part of *genai.GenerativeModel the extractor uses.
type Generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Extractor sends document bytes to a multimodal model.
type Extractor struct {
	model    Generator
	maxPages int
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxPages rejects PDFs longer than n pages before calling the model.
func WithMaxPages(n int) Option {
	return func(e *Extractor) {
		e.maxPages = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// New wraps a generator. Use NewModel to configure a Vertex AI model.
func New(gen Generator, opts ...Option) *Extractor {
	e := &Extractor{model: gen, maxPages: 20, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// NewModel configures a deterministic JSON-mode model on an existing client.
func NewModel(client *genai.Client, name string) *genai.GenerativeModel {
	m := client.GenerativeModel(name)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	return m
}

func (e *Extractor) Extract(ctx context.Context, doc extraction.Document) (casefile.Fields, error) {
	prompt, ok := userPrompts[doc.Kind]
	if !ok {
		return nil, fmt.Errorf("vision: %w: kind %q", extraction.ErrUnsupportedFormat, doc.Kind)
	}

	mt := doc.MediaType()
	switch {
	case mt == "application/pdf":
		if err := e.preflightPDF(doc); err != nil {
			return nil, err
		}
	case strings.HasPrefix(mt, "image/"):
	default:
		return nil, fmt.Errorf("vision: %w: %q", extraction.ErrUnsupportedFormat, mt)
	}

	resp, err := e.model.GenerateContent(ctx,
		genai.Blob{MIMEType: mt, Data: doc.Data},
		genai.Text(prompt),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, extraction.NewExtractionError(doc.Kind, extraction.ErrorProviderOutage, "vertex ai call failed", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, extraction.NewExtractionError(doc.Kind, extraction.ErrorBadData, "model returned no content", nil)
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		e.logger.DebugContext(ctx, "model returned non-JSON content", "kind", doc.Kind, "response", text)
		return nil, extraction.NewExtractionError(doc.Kind, extraction.ErrorBadData, "model response is not a JSON object", err)
	}
	return casefile.Fields(fields), nil
}

// preflightPDF rejects unreadable or oversized PDFs before paying for a model call.
func (e *Extractor) preflightPDF(doc extraction.Document) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pages, err := api.PageCount(bytes.NewReader(doc.Data), conf)
	if err != nil {
		return extraction.NewExtractionError(doc.Kind, extraction.ErrorBadData, "PDF could not be read", err)
	}
	if e.maxPages > 0 && pages > e.maxPages {
		return extraction.NewExtractionError(doc.Kind, extraction.ErrorUnsupported,
			fmt.Sprintf("PDF has %d pages, limit is %d", pages, e.maxPages), nil)
	}
	return nil
}

// responseText concatenates the text parts of the first candidate and strips
// markdown fences the model sometimes adds despite JSON mode.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	s := strings.TrimSpace(b.String())
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
