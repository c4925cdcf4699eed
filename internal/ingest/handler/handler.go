// Package handler accepts log entries from producer services over HTTP.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentlake/internal/ingest"
	dErrors "consentlake/pkg/domain-errors"
	"consentlake/pkg/platform/httputil"
	"consentlake/pkg/platform/middleware/request"
)

// Service is the ingestor surface used by the handler.
type Service interface {
	Log(ctx context.Context, raw map[string]any, opts ingest.LogOptions) error
	LogBatch(ctx context.Context, raws []map[string]any, opts ingest.LogOptions) error
	Flush(ctx context.Context) error
	BufferStatus() ingest.BufferStatus
	HealthCheck(ctx context.Context) ingest.Health
}

// Handler handles log ingestion endpoints.
type Handler struct {
	ingestor Service
	logger   *slog.Logger
}

// New creates a new ingestion Handler.
func New(ingestor Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{ingestor: ingestor, logger: logger}
}

// Register mounts the ingestion routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/logs", func(r chi.Router) {
		r.Post("/", h.HandleLog)
		r.Post("/batch", h.HandleLogBatch)
		r.Post("/flush", h.HandleFlush)
		r.Get("/buffer", h.HandleBufferStatus)
		r.Get("/health", h.HandleHealth)
	})
}

// HandleLog admits a single entry. A consent-gated drop is still 202; the
// producer has no way to act on it.
func (h *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[LogRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.checkLimits(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.ingestor.Log(ctx, req.Entry, req.options()); err != nil {
		h.logFailure(ctx, "failed to log entry", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{Accepted: 1})
}

// HandleLogBatch admits entries in order and stops at the first failure.
// Entries before the failing one stay admitted.
func (h *Handler) HandleLogBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[BatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.checkLimits(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.ingestor.LogBatch(ctx, req.Entries, req.options()); err != nil {
		h.logFailure(ctx, "failed to log batch", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{Accepted: len(req.Entries)})
}

// HandleFlush uploads the buffer now, regardless of breaker state.
func (h *Handler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.ingestor.Flush(ctx); err != nil {
		h.logFailure(ctx, "manual flush failed", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeLogError, fmt.Sprintf("flush: %v", err)))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.ingestor.BufferStatus())
}

func (h *Handler) HandleBufferStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.ingestor.BufferStatus())
}

// HandleHealth performs a synthetic lake write and reports 503 when it fails.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.ingestor.HealthCheck(r.Context())
	status := http.StatusOK
	if health.Status != ingest.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, health)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", request.RequestIDFromContext(ctx),
		"code", dErrors.CodeOf(err),
		"error", err,
	)
}
