package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	kycHandler "github.com/soyYisus/jaak-kyc-demo/internal/kyc/handler"
	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/login"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/middleware"
	dErrors "github.com/soyYisus/jaak-kyc-demo/pkg/domain-errors"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/httputil"
)

// SessionCreator opens a KYC session for a validated login.
type SessionCreator interface {
	CreateSession(ctx context.Context, req models.FlowRequest) (*models.Session, error)
}

// Response is returned after a successful login.
type Response struct {
	Success           bool    `json:"success"`
	ExtractedShortKey *string `json:"extractedShortKey"`
	Redirect          string  `json:"redirect"`
}

// ValidationResponse lists the fields that failed validation.
type ValidationResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

type Handler struct {
	sessions SessionCreator
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(sessions SessionCreator, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{sessions: sessions, logger: logger, metrics: m}
}

// Register registers the login route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/login", h.handleLogin)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var form login.Form
	if err := httputil.DecodeJSON(r, &form); err != nil {
		h.logger.WarnContext(ctx, "invalid login body", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	if err := form.Validate(); err != nil {
		h.metrics.IncrementLoginAttempt("invalid")
		var fields login.FieldErrors
		if !errors.As(err, &fields) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.InfoContext(ctx, "login form rejected", "request_id", requestID, "fields", len(fields))
		httputil.WriteJSON(w, http.StatusBadRequest, ValidationResponse{
			Success: false,
			Message: dErrors.MessageOf(err),
			Fields:  fields,
		})
		return
	}

	session, err := h.sessions.CreateSession(ctx, login.BuildFlowRequest(form))
	if err != nil {
		h.metrics.IncrementLoginAttempt("upstream_error")
		kycHandler.WriteUpstreamError(w, err)
		return
	}
	h.metrics.IncrementLoginAttempt("session_created")

	httputil.WriteJSON(w, http.StatusOK, Response{
		Success:           true,
		ExtractedShortKey: session.ShortKey,
		Redirect:          RedirectURL(session.ShortKey),
	})
}

// RedirectURL points the browser at the embed page, carrying the short key
// when the provider returned one.
func RedirectURL(shortKey *string) string {
	if shortKey == nil || *shortKey == "" {
		return "/"
	}
	return "/?" + url.Values{"shortKey": {*shortKey}}.Encode()
}
