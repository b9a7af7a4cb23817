package httptransport

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyYisus/jaak-kyc-demo/internal/platform/logger"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/middleware"
)

type routeFunc func(r chi.Router)

func (f routeFunc) Register(r chi.Router) { f(r) }

func newTestRouter(t *testing.T, logs io.Writer) (http.Handler, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	cfg := RouterConfig{
		Logger:  logger.NewWithWriter(logs, "debug", true, "test"),
		Metrics: m,
		Headers: middleware.HeaderPolicy{WidgetOrigin: "https://widget.test", APIOrigin: "https://api.test"},
	}
	stream := routeFunc(func(r chi.Router) {
		r.Get("/stream", func(w http.ResponseWriter, _ *http.Request) {
			_, ok := w.(http.Hijacker)
			if ok {
				_, _ = w.Write([]byte("hijackable"))
				return
			}
			_, _ = w.Write([]byte("wrapped"))
		})
	})
	api := routeFunc(func(r chi.Router) {
		r.Get("/api/ping", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("pong"))
		})
		r.Get("/api/panic", func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})
	})
	return NewRouter(cfg, []Registrar{stream}, api), m
}

func TestRouterAppliesSharedMiddleware(t *testing.T) {
	var logs bytes.Buffer
	router, m := newTestRouter(t, &logs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "ALLOWALL", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-src 'self' https://widget.test")
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestLatency))
}

func TestRouterRecoversPanics(t *testing.T) {
	router, _ := newTestRouter(t, io.Discard)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouterNotFound(t *testing.T) {
	router, _ := newTestRouter(t, io.Discard)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not_found"`)
}

func TestStreamingRoutesKeepTheRawConnection(t *testing.T) {
	router, _ := newTestRouter(t, io.Discard)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "hijackable", string(body))
	assert.Equal(t, "ALLOWALL", resp.Header.Get("X-Frame-Options"))
}

func TestWithMiddlewareScopesToTheWrappedRoutes(t *testing.T) {
	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Guarded", "yes")
			next.ServeHTTP(w, r)
		})
	}
	guarded := routeFunc(func(r chi.Router) {
		r.Post("/api/guarded", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	})
	open := routeFunc(func(r chi.Router) {
		r.Get("/api/open", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	router := NewRouter(RouterConfig{
		Logger:  logger.NewWithWriter(io.Discard, "info", true, "test"),
		Metrics: metrics.NewWithRegistry(prometheus.NewRegistry()),
	}, nil, WithMiddleware(guarded, tag), open)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/guarded", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Guarded"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/open", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Guarded"))
}
