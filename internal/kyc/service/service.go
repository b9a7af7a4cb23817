package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/provider"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	sessionModels "github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
	"github.com/soyYisus/jaak-kyc-demo/pkg/requestcontext"
)

// Provider opens sessions on the remote KYC API.
type Provider interface {
	CreateSession(ctx context.Context, req models.FlowRequest) (json.RawMessage, error)
}

// ConfigService persists the short key of the latest session.
type ConfigService interface {
	SetShortKey(ctx context.Context, shortKey string) (sessionModels.SessionConfig, error)
}

// Service proxies session creation and records the derived short key.
type Service struct {
	provider Provider
	config   ConfigService
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(p Provider, config ConfigService, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{provider: p, config: config, logger: logger, metrics: m}
}

// CreateSession fills defaults, calls the provider once and, when the
// response carries a sessionUrl, stores its short key. Failing to store the
// key is logged and does not fail the call.
func (s *Service) CreateSession(ctx context.Context, req models.FlowRequest) (*models.Session, error) {
	requestID := requestcontext.RequestID(ctx)
	req = req.WithDefaults()

	s.logger.InfoContext(ctx, "creating kyc session",
		"request_id", requestID,
		"flow", req.Flow,
		"country_document", req.CountryDocument,
	)

	start := time.Now()
	body, err := s.provider.CreateSession(ctx, req)
	s.metrics.ObserveUpstreamDuration(time.Since(start))
	if err != nil {
		s.metrics.IncrementSessionsCreated("upstream_error")
		attrs := []any{"request_id", requestID, "error", err}
		var ue *provider.UpstreamError
		if errors.As(err, &ue) {
			attrs = append(attrs, "status", ue.StatusCode, "category", ue.Category)
		}
		s.logger.ErrorContext(ctx, "kyc provider call failed", attrs...)
		return nil, err
	}
	s.metrics.IncrementSessionsCreated("success")

	session := &models.Session{Data: body}
	sessionURL, ok := provider.SessionURL(body)
	if !ok {
		s.logger.WarnContext(ctx, "provider response has no sessionUrl", "request_id", requestID)
		return session, nil
	}

	shortKey := provider.ExtractShortKey(sessionURL)
	session.ShortKey = &shortKey
	if _, err := s.config.SetShortKey(ctx, shortKey); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist short key",
			"request_id", requestID,
			"short_key", shortKey,
			"error", err,
		)
	}
	return session, nil
}
