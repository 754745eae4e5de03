package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"casework/internal/casefile"
	"casework/internal/casestore"
	"casework/internal/extraction"
	"casework/internal/pipeline"
	"casework/internal/pipeline/handler/mocks"
	"casework/pkg/platform/sentinel"
	"casework/pkg/requestcontext"
)

type CaseHandlerSuite struct {
	suite.Suite
	evaluator *mocks.MockEvaluator
	cases     *mocks.MockCaseReader
	router    chi.Router
}

func TestCaseHandlerSuite(t *testing.T) {
	suite.Run(t, new(CaseHandlerSuite))
}

func (s *CaseHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.evaluator = mocks.NewMockEvaluator(ctrl)
	s.cases = mocks.NewMockCaseReader(ctrl)

	h := New(s.evaluator, s.cases, slog.New(slog.NewTextHandler(io.Discard, nil))).WithMaxUploadBytes(1 << 16)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

type part struct {
	field, filename, contentType string
	data                         []byte
}

func multipartBody(s *CaseHandlerSuite, parts ...part) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			s.Require().NoError(mw.WriteField(p.field, string(p.data)))
			continue
		}
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		hdr.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(hdr)
		s.Require().NoError(err)
		_, err = w.Write(p.data)
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *CaseHandlerSuite) do(req *http.Request, authenticated bool) *httptest.ResponseRecorder {
	ctx := requestcontext.WithRequestID(req.Context(), "req-1")
	if authenticated {
		ctx = requestcontext.WithCaseworkerID(ctx, "cw-7")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req.WithContext(ctx))
	return w
}

func (s *CaseHandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func decidedSnapshot() casefile.Snapshot {
	return casefile.Snapshot{
		ID: "case-42",
		StageErrors: []casefile.StageError{{
			Stage: casefile.StageScoring, Kind: casefile.ErrorScoring, Subject: "hardship-logit",
			Message: "dial tcp 10.0.0.3:443: connection refused",
		}},
		Decision: &casefile.Decision{
			Status:     casefile.StatusReview,
			Reasons:    []casefile.Reason{{Text: "eligibility scoring failed"}},
			Confidence: 0.8,
			DecidedAt:  time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

// =============================================================================
// POST /cases
// =============================================================================

func (s *CaseHandlerSuite) TestSubmit() {
	body, contentType := multipartBody(s,
		part{"bank_statement", "statement.csv", "text/csv", []byte("date,description,amount,balance\n")},
		part{"emirates_id", "id.json", "application/json", []byte(`{"name":"A"}`)},
	)

	var got map[casefile.Kind]extraction.Document
	s.evaluator.EXPECT().Run(gomock.Any(), "", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, docs map[casefile.Kind]extraction.Document) (casefile.Snapshot, error) {
			s.Equal("req-1", requestcontext.RequestID(ctx))
			got = docs
			return decidedSnapshot(), nil
		})

	req := httptest.NewRequest(http.MethodPost, "/cases", body)
	req.Header.Set("Content-Type", contentType)
	w := s.do(req, true)

	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(got, 2)
	s.Equal("statement.csv", got[casefile.KindBankStatement].Filename)
	s.Equal("text/csv", got[casefile.KindBankStatement].ContentType)
	s.Equal([]byte(`{"name":"A"}`), got[casefile.KindEmiratesID].Data)

	var resp CaseResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("case-42", resp.CaseID)
	s.Equal("REVIEW", resp.Decision.Status)
	s.Equal([]ReasonResponse{{Text: "eligibility scoring failed"}}, resp.Decision.Reasons)
	s.NotContains(w.Body.String(), "connection refused")
	s.NotContains(w.Body.String(), "stage_errors")
}

func (s *CaseHandlerSuite) TestSubmitRequiresAuthentication() {
	body, contentType := multipartBody(s, part{"bank_statement", "s.csv", "text/csv", []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/cases", body)
	req.Header.Set("Content-Type", contentType)

	w := s.do(req, false)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *CaseHandlerSuite) TestSubmitValidation() {
	tests := []struct {
		name   string
		parts  []part
		status int
		code   string
	}{
		{"no documents", nil, http.StatusBadRequest, "validation_error"},
		{"unknown field only", []part{{"payslip", "p.pdf", "application/pdf", []byte("%PDF")}}, http.StatusBadRequest, "validation_error"},
		{"duplicate kind", []part{
			{"credit_report", "a.pdf", "application/pdf", []byte("%PDF")},
			{"credit_report", "b.pdf", "application/pdf", []byte("%PDF")},
		}, http.StatusBadRequest, "validation_error"},
		{"too large", []part{{"credit_report", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 1<<17)}}, http.StatusRequestEntityTooLarge, "request_too_large"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			body, contentType := multipartBody(s, tt.parts...)
			req := httptest.NewRequest(http.MethodPost, "/cases", body)
			req.Header.Set("Content-Type", contentType)

			w := s.do(req, true)
			s.Equal(tt.status, w.Code)
			s.Equal(tt.code, s.decode(w)["error"])
		})
	}
}

func (s *CaseHandlerSuite) TestSubmitNotMultipart() {
	req := httptest.NewRequest(http.MethodPost, "/cases", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	w := s.do(req, true)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("bad_request", s.decode(w)["error"])
}

func (s *CaseHandlerSuite) TestSubmitCancelled() {
	body, contentType := multipartBody(s, part{"bank_statement", "s.csv", "text/csv", []byte("x")})
	s.evaluator.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return(casefile.Snapshot{ID: "c"}, pipeline.ErrCancelled)

	req := httptest.NewRequest(http.MethodPost, "/cases", body)
	req.Header.Set("Content-Type", contentType)
	w := s.do(req, true)

	s.Equal(499, w.Code)
	s.Equal("request_cancelled", s.decode(w)["error"])
}

func (s *CaseHandlerSuite) TestSubmitInternalErrorBecomesSoftDecline() {
	body, contentType := multipartBody(s, part{"bank_statement", "s.csv", "text/csv", []byte("x")})
	s.evaluator.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(casefile.Snapshot{ID: "c"}, errors.New("merge decision delta: decision already set"))

	req := httptest.NewRequest(http.MethodPost, "/cases", body)
	req.Header.Set("Content-Type", contentType)
	w := s.do(req, true)

	s.Require().Equal(http.StatusOK, w.Code)
	s.NotContains(w.Body.String(), "decision already set")

	var resp CaseResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("c", resp.CaseID)
	s.Equal("SOFT_DECLINE", resp.Decision.Status)
	s.Equal([]ReasonResponse{{Text: "unable to process"}}, resp.Decision.Reasons)
}

// =============================================================================
// Caller supplied case IDs
// =============================================================================

func (s *CaseHandlerSuite) submitWithID(caseID string) *httptest.ResponseRecorder {
	body, contentType := multipartBody(s,
		part{"case_id", "", "", []byte(caseID)},
		part{"bank_statement", "s.csv", "text/csv", []byte("x")},
	)
	req := httptest.NewRequest(http.MethodPost, "/cases", body)
	req.Header.Set("Content-Type", contentType)
	return s.do(req, true)
}

func (s *CaseHandlerSuite) TestSubmitWithNewCaseID() {
	s.cases.EXPECT().Get(gomock.Any(), "case-42").Return(casestore.Record{}, sentinel.ErrNotFound)
	s.evaluator.EXPECT().Run(gomock.Any(), "case-42", gomock.Any()).Return(decidedSnapshot(), nil)

	w := s.submitWithID("  case-42 ")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("case-42", s.decode(w)["case_id"])
}

func (s *CaseHandlerSuite) TestSubmitExistingCaseIsConflict() {
	record, err := casestore.FromSnapshot(decidedSnapshot())
	s.Require().NoError(err)
	s.cases.EXPECT().Get(gomock.Any(), "case-42").Return(record, nil)
	s.evaluator.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := s.submitWithID("case-42")
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("conflict", s.decode(w)["error"])
}

func (s *CaseHandlerSuite) TestSubmitConcurrentDuplicateIsConflict() {
	s.cases.EXPECT().Get(gomock.Any(), "case-42").Return(casestore.Record{}, sentinel.ErrNotFound)
	s.evaluator.EXPECT().Run(gomock.Any(), "case-42", gomock.Any()).
		Return(decidedSnapshot(), fmt.Errorf("%w: case-42", pipeline.ErrDuplicateCase))

	w := s.submitWithID("case-42")
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("conflict", s.decode(w)["error"])
	s.NotContains(w.Body.String(), "REVIEW")
}

func (s *CaseHandlerSuite) TestSubmitInvalidCaseID() {
	for name, id := range map[string]string{
		"too long":       strings.Repeat("a", 65),
		"inner space":    "case 42",
		"control bytes":  "case\x00",
		"non ascii text": "cäse",
	} {
		s.Run(name, func() {
			w := s.submitWithID(id)
			s.Equal(http.StatusBadRequest, w.Code)
			s.Equal("validation_error", s.decode(w)["error"])
		})
	}
}

func (s *CaseHandlerSuite) TestSubmitCaseLookupFailure() {
	s.cases.EXPECT().Get(gomock.Any(), "case-42").Return(casestore.Record{}, errors.New("pq: connection reset"))

	w := s.submitWithID("case-42")
	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "connection reset")
}

// =============================================================================
// GET /cases/{id}
// =============================================================================

func (s *CaseHandlerSuite) TestGet() {
	record, err := casestore.FromSnapshot(decidedSnapshot())
	s.Require().NoError(err)
	s.cases.EXPECT().Get(gomock.Any(), "case-42").Return(record, nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/cases/case-42", nil), true)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp CaseResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("case-42", resp.CaseID)
	s.Equal("REVIEW", resp.Decision.Status)
	s.InDelta(0.8, resp.Decision.Confidence, 1e-9)
}

func (s *CaseHandlerSuite) TestGetNotFound() {
	s.cases.EXPECT().Get(gomock.Any(), "nope").Return(casestore.Record{}, sentinel.ErrNotFound)

	w := s.do(httptest.NewRequest(http.MethodGet, "/cases/nope", nil), true)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("not_found", s.decode(w)["error"])
}

func (s *CaseHandlerSuite) TestGetRequiresAuthentication() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/cases/case-42", nil), false)
	s.Equal(http.StatusUnauthorized, w.Code)
}
