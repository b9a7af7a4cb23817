package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soyYisus/jaak-kyc-demo/internal/platform/middleware"
	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/httputil"
)

// Service defines the interface for session config operations.
type Service interface {
	Get(ctx context.Context) models.SessionConfig
	SaveSteps(ctx context.Context, keys []string) (models.SessionConfig, error)
}

// Handler serves the session configuration endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the config routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/config", h.handleGetConfig)
	r.Post("/api/config", h.handleSaveConfig)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Get(r.Context()))
}

func (h *Handler) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SaveStepsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cfg, err := h.service.SaveSteps(ctx, req.Keys())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.SaveStepsResponse{
		Success: true,
		Message: "configuration saved",
		Config:  cfg,
	})
}
