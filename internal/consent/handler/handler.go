// Package handler exposes the consent manager over HTTP.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"consentlake/internal/consent/cache"
	"consentlake/internal/consent/models"
	dErrors "consentlake/pkg/domain-errors"
	"consentlake/pkg/platform/httputil"
	"consentlake/pkg/platform/middleware/request"
	"consentlake/pkg/platform/validation"
)

// Service is the consent manager surface used by the handler.
type Service interface {
	CheckConsent(ctx context.Context, userID, purpose string) bool
	GetUserConsent(ctx context.Context, userID string) (*models.UserConsent, error)
	UpdateConsent(ctx context.Context, userID string, partial models.Partial, meta models.Meta) (*models.UserConsent, error)
	RevokeAllConsent(ctx context.Context, userID string) error
	GetConsentAuditTrail(ctx context.Context, userID string) ([]*models.UserConsent, error)
	GenerateConsentReport(ctx context.Context) (*models.Report, error)
	ClearCache(ctx context.Context) error
	CacheStats(ctx context.Context) (cache.Stats, error)
}

// Handler handles consent endpoints.
type Handler struct {
	consent Service
	logger  *slog.Logger
}

// New creates a new consent Handler.
func New(consent Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{consent: consent, logger: logger}
}

// Register mounts the consent routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/consent", func(r chi.Router) {
		r.Get("/report", h.HandleReport)
		r.Get("/cache/stats", h.HandleCacheStats)
		r.Delete("/cache", h.HandleClearCache)

		r.Route("/{userID}", func(r chi.Router) {
			r.Use(requireUserID)
			r.Put("/", h.HandleUpdate)
			r.Get("/", h.HandleGet)
			r.Get("/check/{purpose}", h.HandleCheck)
			r.Post("/revoke", h.HandleRevoke)
			r.Get("/audit", h.HandleAudit)
		})
	})
}

// requireUserID bounds the user id path segment before it reaches a store
// key or a cache key.
func requireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if err := validation.CheckStringLength("user_id", userID, validation.MaxUserIDLength); err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleUpdate merges the submitted fields over the user's latest snapshot.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	req, ok := httputil.DecodeJSON[UpdateRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Partial.IsEmpty() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "at least one consent field is required"))
		return
	}

	meta := models.Meta{IPAddress: clientIP(r), UserAgent: r.UserAgent()}
	updated, err := h.consent.UpdateConsent(ctx, userID, req.Partial, meta)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update consent",
			"request_id", request.RequestIDFromContext(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleGet returns the latest snapshot or 404 when none was recorded.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	consent, err := h.consent.GetUserConsent(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if consent == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no consent recorded for user"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, consent)
}

// HandleCheck answers whether the user allows a purpose. It always answers
// 200; a denied or unknown purpose is allowed=false.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	purpose := chi.URLParam(r, "purpose")

	httputil.WriteJSON(w, http.StatusOK, CheckResponse{
		UserID:  userID,
		Purpose: purpose,
		Allowed: h.consent.CheckConsent(r.Context(), userID, purpose),
	})
}

// HandleRevoke withdraws every purpose for the user.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if err := h.consent.RevokeAllConsent(ctx, userID); err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke consent",
			"request_id", request.RequestIDFromContext(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{UserID: userID, Revoked: true})
}

// HandleAudit returns every snapshot for the user, most recent first.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	trail, err := h.consent.GetConsentAuditTrail(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if trail == nil {
		trail = []*models.UserConsent{}
	}
	httputil.WriteJSON(w, http.StatusOK, AuditResponse{UserID: userID, Count: len(trail), Snapshots: trail})
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.consent.GenerateConsentReport(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.consent.CacheStats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.consent.ClearCache(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
