// Package handler exposes case evaluation over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"casework/internal/casefile"
	"casework/internal/casestore"
	"casework/internal/extraction"
	"casework/internal/pipeline"
	dErrors "casework/pkg/domain-errors"
	"casework/pkg/platform/httputil"
	"casework/pkg/platform/sentinel"
	"casework/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Evaluator,CaseReader

// Evaluator runs the pipeline for one case.
type Evaluator interface {
	Run(ctx context.Context, caseID string, docs map[casefile.Kind]extraction.Document) (casefile.Snapshot, error)
}

// CaseReader loads stored cases.
type CaseReader interface {
	Get(ctx context.Context, caseID string) (casestore.Record, error)
}

// DefaultMaxUploadBytes bounds the multipart body of a submission.
const DefaultMaxUploadBytes int64 = 32 << 20

const maxCaseIDLength = 64

// Handler wires case endpoints to the pipeline and the case store.
type Handler struct {
	evaluator      Evaluator
	cases          CaseReader
	logger         *slog.Logger
	maxUploadBytes int64
}

// New constructs a case handler.
func New(evaluator Evaluator, cases CaseReader, logger *slog.Logger) *Handler {
	return &Handler{
		evaluator:      evaluator,
		cases:          cases,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

// WithMaxUploadBytes overrides the upload limit.
func (h *Handler) WithMaxUploadBytes(n int64) *Handler {
	if n > 0 {
		h.maxUploadBytes = n
	}
	return h
}

// Register mounts case endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cases", h.HandleSubmit)
	r.Get("/cases/{id}", h.HandleGet)
}

// HandleSubmit handles POST /cases. The body is multipart/form-data with
// one file part per document kind, named after the kind.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caseworker := requestcontext.CaseworkerID(ctx)
	if caseworker == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	docs, err := h.readDocuments(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected case submission",
			"request_id", requestID,
			"caseworker_id", caseworker,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	caseID, err := h.newCaseID(ctx, r.FormValue("case_id"))
	if err != nil {
		h.logger.WarnContext(ctx, "rejected case submission",
			"request_id", requestID,
			"caseworker_id", caseworker,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	snap, err := h.evaluator.Run(ctx, caseID, docs)
	switch {
	case errors.Is(err, pipeline.ErrCancelled):
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeCancelled, "request cancelled"))
		return
	case errors.Is(err, pipeline.ErrDuplicateCase):
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, "case already exists"))
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "case evaluation failed",
			"request_id", requestID,
			"case_id", snap.ID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusOK, UnableToProcess(snap.ID))
		return
	}

	h.logger.InfoContext(ctx, "case evaluated",
		"request_id", requestID,
		"case_id", snap.ID,
		"caseworker_id", caseworker,
		"documents", len(docs),
		"status", snap.Decision.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromSnapshot(snap))
}

// HandleGet handles GET /cases/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if requestcontext.CaseworkerID(ctx) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	caseID := strings.TrimSpace(chi.URLParam(r, "id"))
	if !validCaseID(caseID) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid case id"))
		return
	}

	record, err := h.cases.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "case not found"))
			return
		}
		h.logger.ErrorContext(ctx, "case lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"case_id", caseID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// newCaseID checks a caller supplied case ID. An empty ID lets the pipeline
// generate one; an ID that already has a stored decision is a conflict.
func (h *Handler) newCaseID(ctx context.Context, raw string) (string, error) {
	caseID := strings.TrimSpace(raw)
	if caseID == "" {
		return "", nil
	}
	if !validCaseID(caseID) {
		return "", dErrors.New(dErrors.CodeValidation, "invalid case id")
	}
	_, err := h.cases.Get(ctx, caseID)
	switch {
	case err == nil:
		return "", dErrors.New(dErrors.CodeConflict, "case already exists")
	case errors.Is(err, sentinel.ErrNotFound):
		return caseID, nil
	default:
		return "", fmt.Errorf("look up case %s: %w", caseID, err)
	}
}

func validCaseID(id string) bool {
	if id == "" || len(id) > maxCaseIDLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}

func (h *Handler) readDocuments(w http.ResponseWriter, r *http.Request) (map[casefile.Kind]extraction.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, dErrors.New(dErrors.CodeTooLarge, "documents exceed upload limit")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "multipart form body is required")
	}

	docs := make(map[casefile.Kind]extraction.Document, len(casefile.AllKinds))
	for _, kind := range casefile.AllKinds {
		files := r.MultipartForm.File[string(kind)]
		if len(files) == 0 {
			continue
		}
		if len(files) > 1 {
			return nil, dErrors.New(dErrors.CodeValidation, "only one file per document kind: "+string(kind))
		}
		doc, err := readPart(kind, files[0])
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read "+string(kind))
		}
		docs[kind] = doc
	}
	if len(docs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one document is required")
	}
	return docs, nil
}

func readPart(kind casefile.Kind, fh *multipart.FileHeader) (extraction.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return extraction.Document{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return extraction.Document{}, err
	}
	return extraction.Document{
		Kind:        kind,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
