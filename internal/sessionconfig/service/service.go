package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/steps"
	dErrors "github.com/soyYisus/jaak-kyc-demo/pkg/domain-errors"
	"github.com/soyYisus/jaak-kyc-demo/pkg/requestcontext"
)

type Store interface {
	Read(ctx context.Context) (models.SessionConfig, error)
	Write(ctx context.Context, cfg models.SessionConfig) error
}

// Service owns the read-modify-write cycle over the single config record.
// Last writer wins; the mutex only serialises writers within this process.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	mu      sync.Mutex
}

func New(store Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: m}
}

// Get never fails: a store error is logged and the empty fallback returned.
func (s *Service) Get(ctx context.Context) models.SessionConfig {
	cfg, err := s.store.Read(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read session config, serving fallback",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return models.Fallback()
	}
	s.logger.DebugContext(ctx, "session config loaded", "steps", len(cfg.Steps))
	return cfg
}

// SaveSteps replaces the step list, keeping the stored short key.
func (s *Service) SaveSteps(ctx context.Context, keys []string) (models.SessionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.Get(ctx)
	cfg.Steps = models.StepsFromKeys(keys)

	for step, deps := range steps.MissingDependencies(steps.Keys(keys)) {
		s.logger.WarnContext(ctx, "step saved without its dependencies",
			"request_id", requestcontext.RequestID(ctx),
			"step", step,
			"missing", deps,
		)
	}

	if err := s.store.Write(ctx, cfg); err != nil {
		s.metrics.IncrementConfigSaves("steps", "error")
		s.logger.ErrorContext(ctx, "failed to save session config",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return models.SessionConfig{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save configuration")
	}
	s.metrics.IncrementConfigSaves("steps", "success")
	s.logger.InfoContext(ctx, "session config steps updated",
		"request_id", requestcontext.RequestID(ctx),
		"steps", len(keys),
	)
	return cfg, nil
}

// SetShortKey records the short key of the latest provider session.
func (s *Service) SetShortKey(ctx context.Context, shortKey string) (models.SessionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.Get(ctx)
	cfg.ShortKey = shortKey
	if err := s.store.Write(ctx, cfg); err != nil {
		s.metrics.IncrementConfigSaves("short_key", "error")
		return models.SessionConfig{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save short key")
	}
	s.metrics.IncrementConfigSaves("short_key", "success")
	s.logger.InfoContext(ctx, "short key stored",
		"request_id", requestcontext.RequestID(ctx),
		"short_key", shortKey,
	)
	return cfg, nil
}
