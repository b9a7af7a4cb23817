package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/middleware"
	dErrors "github.com/soyYisus/jaak-kyc-demo/pkg/domain-errors"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/httputil"
)

// Middleware limits requests per client IP.
type Middleware struct {
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New builds the middleware. A limit of zero or less disables it.
func New(store Store, limit int, window time.Duration, logger *slog.Logger, m *metrics.Metrics) *Middleware {
	if limit <= 0 {
		logger.Info("session rate limiting disabled")
	}
	return &Middleware{store: store, limit: limit, window: window, logger: logger, metrics: m, now: time.Now}
}

// Limit counts requests under class. Store failures let the request through.
func (m *Middleware) Limit(class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.limit <= 0 || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			result, err := m.store.Allow(ctx, class+":"+ClientIP(r), m.limit, m.window)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"request_id", middleware.GetRequestID(ctx),
					"class", class,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				m.metrics.IncrementRateLimited(class)
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", middleware.GetRequestID(ctx),
					"class", class,
				)
				h.Set("Retry-After", strconv.Itoa(result.RetryAfter(m.now())))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, please try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
