// Package relay runs an embed.Session for each browser connection. The page
// hosts the iframe and forwards widget messages over a WebSocket; the
// session answers with frame commands and progress updates.
package relay

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/soyYisus/jaak-kyc-demo/internal/embed"
	kycModels "github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/middleware"
	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	wsBufferSize   = 4096
	outboxSize     = 256
	loopBuffer     = 64
)

// ConfigSource reads the persisted flow configuration.
type ConfigSource interface {
	Get(ctx context.Context) models.SessionConfig
}

// SessionCreator opens a provider session when no short key is known.
type SessionCreator interface {
	CreateSession(ctx context.Context, req kycModels.FlowRequest) (*kycModels.Session, error)
}

// Handler upgrades page connections and owns their lifetime.
type Handler struct {
	cfg      embed.Config
	configs  ConfigSource
	sessions SessionCreator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Handler)

// WithClock overrides time.Now for sessions and export file names.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func New(cfg embed.Config, configs ConfigSource, sessions SessionCreator, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		cfg:      cfg,
		configs:  configs,
		sessions: sessions,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsBufferSize,
			WriteBufferSize: wsBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the relay route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/embed/ws", h.handleWebSocket)
}

// Close disconnects every open relay and waits for them to finish.
// Hijacked connections are not tracked by http.Server.Shutdown.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
	h.wg.Wait()
}

func (h *Handler) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if !h.acquire() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "request_id", requestID, "error", err)
		return
	}
	defer h.metrics.RelayConnected()()

	logger := h.logger.With("request_id", requestID)
	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()

	logger.InfoContext(ctx, "relay connected", "remote_addr", r.RemoteAddr)
	newClient(h, conn, logger).run(ctx)
	logger.InfoContext(ctx, "relay disconnected")
}
