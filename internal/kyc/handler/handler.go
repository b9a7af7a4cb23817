package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/provider"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/middleware"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/httputil"
)

// Service defines the interface for KYC session operations.
type Service interface {
	CreateSession(ctx context.Context, req models.FlowRequest) (*models.Session, error)
}

// Handler serves the session proxy endpoint.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the KYC routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/kyc/flow", h.handleCreateFlow)
}

func (h *Handler) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.FlowRequest
	if err := httputil.DecodeOptionalJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid flow request body", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.service.CreateSession(ctx, req)
	if err != nil {
		WriteUpstreamError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.FlowResponse{
		Success:           true,
		Data:              session.Data,
		ExtractedShortKey: session.ShortKey,
	})
}

// WriteUpstreamError relays a provider failure with the upstream status and
// body. Errors that are not provider failures use the standard envelope.
func WriteUpstreamError(w http.ResponseWriter, err error) {
	var ue *provider.UpstreamError
	if !errors.As(err, &ue) {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, ue.HTTPStatus(), models.FlowFailure{
		Success:    false,
		Error:      upstreamBody(ue.Body),
		Message:    "failed to call the KYC provider",
		StatusCode: ue.StatusCode,
		Category:   string(ue.Category),
		Details:    ue.Error(),
	})
}

func upstreamBody(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return body
	}
	text := "internal server error"
	if len(body) > 0 {
		text = string(body)
	}
	quoted, _ := json.Marshal(text)
	return quoted
}
