package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"

	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/httputil"
)

// New builds an HTTP server with sane defaults for this project.
// WriteTimeout stays unset so relay websockets are not cut off.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// NewMetrics builds the listener that exposes the Prometheus registry.
func NewMetrics(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return New(addr, mux)
}

// Health tracks readiness so the process can be drained ahead of a restart.
type Health struct {
	ready  atomic.Bool
	logger *slog.Logger
	checks []check
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

func NewHealth(logger *slog.Logger) *Health {
	h := &Health{logger: logger}
	h.ready.Store(true)
	return h
}

// AddCheck adds a dependency probe to /readyz. Call before serving.
func (h *Health) AddCheck(name string, fn func(ctx context.Context) error) {
	h.checks = append(h.checks, check{name: name, fn: fn})
}

// Ready reports whether the server accepts new traffic.
func (h *Health) Ready() bool {
	return h.ready.Load()
}

// Register mounts the liveness, readiness and drain endpoints.
func (h *Health) Register(r chi.Router) {
	r.Get("/livez", h.handleLiveness)
	r.Get("/readyz", h.handleReadiness)
	r.Get("/drain", h.handleDrain)
	r.Get("/undrain", h.handleUndrain)
}

func (h *Health) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *Health) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	for _, c := range h.checks {
		if err := c.fn(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "readiness check failed", "check", c.name, "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "check": c.name})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Health) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Swap(false) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "already draining"})
		return
	}
	h.logger.InfoContext(r.Context(), "server marked as not ready")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "draining"})
}

func (h *Health) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if h.ready.Swap(true) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "already ready"})
		return
	}
	h.logger.InfoContext(r.Context(), "server marked as ready")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
