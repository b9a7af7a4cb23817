package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/soyYisus/jaak-kyc-demo/internal/embed"
	"github.com/soyYisus/jaak-kyc-demo/internal/embed/relay"
	kycHandler "github.com/soyYisus/jaak-kyc-demo/internal/kyc/handler"
	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/provider"
	kycService "github.com/soyYisus/jaak-kyc-demo/internal/kyc/service"
	loginHandler "github.com/soyYisus/jaak-kyc-demo/internal/login/handler"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/config"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/httpserver"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/logger"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/middleware"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/redis"
	"github.com/soyYisus/jaak-kyc-demo/internal/ratelimit"
	configHandler "github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/handler"
	configService "github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/service"
	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/store"
	stepsHandler "github.com/soyYisus/jaak-kyc-demo/internal/steps/handler"
	httptransport "github.com/soyYisus/jaak-kyc-demo/internal/transport/http"
	"github.com/soyYisus/jaak-kyc-demo/internal/web"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogJSON, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(registry)

	health := httpserver.NewHealth(log)
	configStore, limitStore, closeStore, err := buildStores(ctx, cfg, health)
	if err != nil {
		return err
	}
	defer closeStore()

	configs := configService.New(configStore, log, m)
	providerClient := provider.New(cfg.KYCAPIURL, cfg.KYCBearerToken, provider.WithTimeout(cfg.UpstreamTimeout))
	if cfg.KYCAPIURL == "" {
		log.Warn("KYC_API_URL is not set; session creation will fail")
	}
	sessions := kycService.New(providerClient, configs, log, m)

	relayHandler := relay.New(embed.Config{
		WidgetOrigin:     cfg.WidgetOrigin,
		EmbedURL:         cfg.WidgetEmbedURL,
		ConfigSendDelay:  cfg.ConfigSendDelay,
		FrameReloadDelay: cfg.FrameReloadDelay,
	}, configs, sessions, log, m)

	limiter := ratelimit.New(limitStore, cfg.RateLimitSessions, cfg.RateLimitWindow, log, m)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:  log,
		Metrics: m,
		Headers: middleware.HeaderPolicy{WidgetOrigin: cfg.WidgetOrigin, APIOrigin: cfg.KYCAPIOrigin},
	},
		[]httptransport.Registrar{relayHandler},
		health,
		configHandler.New(configs, log),
		httptransport.WithMiddleware(kycHandler.New(sessions, log), limiter.Limit("flow")),
		httptransport.WithMiddleware(loginHandler.New(sessions, log, m), limiter.Limit("login")),
		stepsHandler.New(),
		web.New(),
	)

	srv := httpserver.New(cfg.Addr, router)
	srv.RegisterOnShutdown(relayHandler.Close)
	servers := []*http.Server{srv}
	if cfg.MetricsAddr != "" {
		servers = append(servers, httpserver.NewMetrics(cfg.MetricsAddr, registry))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			log.Info("listening", "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", s.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", s.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	log.Info("kyc embed demo started",
		"addr", cfg.Addr,
		"metrics_addr", cfg.MetricsAddr,
		"widget_origin", cfg.WidgetOrigin,
		"config_store", cfg.ConfigStore,
		"session_rate_limit", cfg.RateLimitSessions,
	)
	return g.Wait()
}

// buildStores picks the configured persistence backend for session config
// and rate limit counters. The returned func releases it.
func buildStores(ctx context.Context, cfg config.Server, health *httpserver.Health) (configService.Store, ratelimit.Store, func(), error) {
	switch cfg.ConfigStore {
	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		health.AddCheck("redis", client.Health)
		return store.NewRedisStore(client, cfg.Redis.Key),
			ratelimit.NewRedisStore(client, cfg.Redis.Key+":ratelimit:"),
			func() { _ = client.Close() }, nil
	default:
		return store.NewFileStore(cfg.ConfigFile), ratelimit.NewMemoryStore(), func() {}, nil
	}
}
