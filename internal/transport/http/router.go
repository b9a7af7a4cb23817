package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/middleware"
	dErrors "github.com/soyYisus/jaak-kyc-demo/pkg/domain-errors"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/httputil"
)

// Registrar mounts a feature's routes.
type Registrar interface {
	Register(r chi.Router)
}

// WithMiddleware mounts reg inside a group that runs mws first.
func WithMiddleware(reg Registrar, mws ...func(http.Handler) http.Handler) Registrar {
	return group{reg: reg, mws: mws}
}

type group struct {
	reg Registrar
	mws []func(http.Handler) http.Handler
}

func (g group) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(g.mws...)
		g.reg.Register(r)
	})
}

// RouterConfig carries the cross-cutting pieces every route shares.
type RouterConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Headers middleware.HeaderPolicy
}

// NewRouter wires the public listener. Every route gets request ids, panic
// recovery, the widget security headers and CORS. Regular routes are also
// access-logged and timed; streaming routes skip both because they need the
// raw connection for the WebSocket upgrade.
func NewRouter(cfg RouterConfig, streaming []Registrar, routes ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.Headers))
	r.Use(middleware.CORS)

	r.Group(func(r chi.Router) {
		for _, s := range streaming {
			s.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger(cfg.Logger))
		r.Use(middleware.LatencyMiddleware(cfg.Metrics))
		for _, route := range routes {
			route.Register(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{
			Success: false,
			Error:   string(dErrors.CodeBadRequest),
			Message: "method not allowed",
		})
	})
	return r
}
