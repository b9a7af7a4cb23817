package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"

	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("store down")
}

type MiddlewareSuite struct {
	suite.Suite
	clock   *stepClock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.clock = &stepClock{t: base}
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *MiddlewareSuite) handler(store Store, limit int) http.Handler {
	mw := New(store, limit, time.Minute, s.logger, s.metrics)
	mw.now = s.clock.now
	return mw.Limit("login")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func (s *MiddlewareSuite) memoryStore() *MemoryStore {
	store := NewMemoryStore()
	store.now = s.clock.now
	return store
}

func post(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *MiddlewareSuite) TestLimit() {
	s.Run("admits requests under the limit and sets headers", func() {
		h := s.handler(s.memoryStore(), 2)
		rec := post(h, "10.0.0.1:5000")
		s.Equal(http.StatusNoContent, rec.Code)
		s.Equal("2", rec.Header().Get("X-RateLimit-Limit"))
		s.Equal("1", rec.Header().Get("X-RateLimit-Remaining"))
		s.Equal("1772366460", rec.Header().Get("X-RateLimit-Reset"))
	})

	s.Run("refuses with 429 once the window is full", func() {
		h := s.handler(s.memoryStore(), 1)
		s.Equal(http.StatusNoContent, post(h, "10.0.0.1:5000").Code)

		s.clock.advance(15 * time.Second)
		rec := post(h, "10.0.0.1:5001")
		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.Equal("45", rec.Header().Get("Retry-After"))
		s.Equal("rate_limited", gjson.Get(rec.Body.String(), "error").String())
		s.False(gjson.Get(rec.Body.String(), "success").Bool())
		s.Equal(1.0, testutil.ToFloat64(s.metrics.RateLimited.WithLabelValues("login")))

		s.Equal(http.StatusNoContent, post(h, "10.0.0.2:5000").Code, "other clients are unaffected")
	})

	s.Run("zero limit disables limiting", func() {
		h := s.handler(failingStore{}, 0)
		for range 5 {
			rec := post(h, "10.0.0.1:5000")
			s.Equal(http.StatusNoContent, rec.Code)
			s.Empty(rec.Header().Get("X-RateLimit-Limit"))
		}
	})

	s.Run("store failure lets the request through", func() {
		rec := post(s.handler(failingStore{}, 1), "10.0.0.1:5000")
		s.Equal(http.StatusNoContent, rec.Code)
		s.Empty(rec.Header().Get("X-RateLimit-Limit"))
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for first hop", headers: map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.9"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "10.0.0.1:80", want: "198.51.100.4"},
		{name: "remote addr host", remote: "192.0.2.7:4321", want: "192.0.2.7"},
		{name: "remote addr without port", remote: "192.0.2.7", want: "192.0.2.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, ClientIP(req))
		})
	}
	assert.NotPanics(t, func() { ClientIP(httptest.NewRequest(http.MethodGet, "/", nil)) })
}
