package extraction

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casework/internal/casefile"
	"casework/pkg/platform/sentinel"
)

func named(name string) Extractor {
	return ExtractorFunc(func(context.Context, Document) (casefile.Fields, error) {
		return casefile.Fields{"extractor": name}, nil
	})
}

func TestRouter(t *testing.T) {
	r := NewRouter().
		Handle("application/json", named("json")).
		Handle("text/csv", named("csv")).
		Handle("image/", named("vision"))

	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{"explicit content type", Document{ContentType: "application/json; charset=utf-8"}, "json"},
		{"extension fallback", Document{Filename: "statement.csv", ContentType: "application/octet-stream"}, "csv"},
		{"prefix route", Document{ContentType: "image/png"}, "vision"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := r.Extract(context.Background(), tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fields["extractor"])
		})
	}

	t.Run("no route and no fallback", func(t *testing.T) {
		_, err := r.Extract(context.Background(), Document{ContentType: "application/zip"})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("fallback", func(t *testing.T) {
		fr := NewRouter(WithFallback(named("remote")))
		fields, err := fr.Extract(context.Background(), Document{ContentType: "application/pdf"})
		require.NoError(t, err)
		assert.Equal(t, "remote", fields["extractor"])
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(casefile.KindBankStatement, named("csv")))
	assert.Error(t, reg.Register(casefile.KindBankStatement, named("again")))
	assert.Error(t, reg.Register(casefile.Kind("payslip"), named("x")))
	assert.Error(t, reg.Register(casefile.KindCreditReport, nil))

	_, err := reg.Get(casefile.KindEmiratesID)
	assert.ErrorIs(t, err, ErrExtractorNotFound)
}

func TestClassify(t *testing.T) {
	kind := casefile.KindCreditReport
	tests := []struct {
		name      string
		err       error
		category  ErrorCategory
		retryable bool
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorTimeout, true},
		{"outage", fmt.Errorf("breaker: %w", sentinel.ErrUnavailable), ErrorProviderOutage, true},
		{"unsupported", ErrUnsupportedFormat, ErrorUnsupported, false},
		{"no fields", casefile.ErrNoRecognisedFields, ErrorBadData, false},
		{"unknown", errors.New("boom"), ErrorInternal, false},
		{"already classified", NewExtractionError("", ErrorNotFound, "gone", nil), ErrorNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ee := Classify(kind, tt.err)
			require.NotNil(t, ee)
			assert.Equal(t, tt.category, ee.Category)
			assert.Equal(t, kind, ee.Kind)
			assert.Equal(t, tt.retryable, IsRetryable(ee))
			assert.Equal(t, tt.category, GetCategory(ee))
		})
	}

	assert.Nil(t, Classify(kind, nil))
	assert.Equal(t, ErrorInternal, GetCategory(errors.New("plain")))
}
