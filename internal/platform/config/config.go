package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	MetricsAddr string
	ServiceName string

	// Remote KYC provider.
	KYCAPIURL       string
	KYCBearerToken  string
	KYCAPIOrigin    string
	UpstreamTimeout time.Duration

	// Embedded widget.
	WidgetOrigin     string
	WidgetEmbedURL   string
	ConfigSendDelay  time.Duration
	FrameReloadDelay time.Duration

	// Session configuration persistence.
	ConfigStore string
	ConfigFile  string
	Redis       RedisConfig

	// Per client cap on provider session creation. Zero disables it.
	RateLimitSessions int
	RateLimitWindow   time.Duration

	LogLevel string
	LogJSON  bool
}

// RedisConfig configures the optional Redis-backed config store.
type RedisConfig struct {
	URL          string
	Key          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const (
	StoreFile  = "file"
	StoreRedis = "redis"

	DefaultPort             = "3000"
	DefaultMetricsAddr      = ":9090"
	DefaultWidgetOrigin     = "https://mosaic.sandbox.jaak.ai"
	DefaultKYCAPIOrigin     = "https://sandbox.api.jaak.ai"
	DefaultConfigFile       = "config.json"
	DefaultRedisKey         = "kyc:session-config"
	DefaultConfigSendDelay  = 1500 * time.Millisecond
	DefaultFrameReloadDelay = 500 * time.Millisecond
	DefaultUpstreamTimeout  = 30 * time.Second
	DefaultRateLimit        = 10
	DefaultRateLimitWindow  = time.Minute
)

var (
	ErrInvalidStore       = errors.New("CONFIG_STORE must be file or redis")
	ErrMissingRedisURL    = errors.New("REDIS_URL is required when CONFIG_STORE=redis")
	ErrInvalidOrigin      = errors.New("origin must be an absolute http(s) URL without a path")
	ErrInvalidEmbedURL    = errors.New("WIDGET_EMBED_URL must be an absolute URL on the widget origin")
	ErrNegativeDuration   = errors.New("durations must not be negative")
	ErrInvalidUpstreamURL = errors.New("KYC_API_URL must be an absolute http(s) URL")
	ErrInvalidRateLimit   = errors.New("RATE_LIMIT_SESSIONS must not be negative and RATE_LIMIT_WINDOW must be positive")
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	addr := os.Getenv("ADDR")
	if addr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = DefaultPort
		}
		addr = ":" + port
	}

	widgetOrigin := envOr("WIDGET_ORIGIN", DefaultWidgetOrigin)
	cfg := Server{
		Addr:           addr,
		MetricsAddr:    envOr("METRICS_ADDR", DefaultMetricsAddr),
		ServiceName:    envOr("SERVICE_NAME", "kyc-embed-demo"),
		KYCAPIURL:      os.Getenv("KYC_API_URL"),
		KYCBearerToken: os.Getenv("KYC_BEARER_TOKEN"),
		KYCAPIOrigin:   envOr("KYC_API_ORIGIN", DefaultKYCAPIOrigin),
		WidgetOrigin:   widgetOrigin,
		WidgetEmbedURL: envOr("WIDGET_EMBED_URL", strings.TrimRight(widgetOrigin, "/")+"/embed"),
		ConfigStore:    strings.ToLower(envOr("CONFIG_STORE", StoreFile)),
		ConfigFile:     envOr("CONFIG_FILE", DefaultConfigFile),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Key:          envOr("REDIS_CONFIG_KEY", DefaultRedisKey),
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		ConfigSendDelay:   DefaultConfigSendDelay,
		FrameReloadDelay:  DefaultFrameReloadDelay,
		UpstreamTimeout:   DefaultUpstreamTimeout,
		RateLimitSessions: DefaultRateLimit,
		RateLimitWindow:   DefaultRateLimitWindow,
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogJSON:           os.Getenv("LOG_JSON") == "true",
	}

	if err := loadEnvDuration("CONFIG_SEND_DELAY", &cfg.ConfigSendDelay); err != nil {
		return cfg, err
	}
	if err := loadEnvDuration("FRAME_RELOAD_DELAY", &cfg.FrameReloadDelay); err != nil {
		return cfg, err
	}
	if err := loadEnvDuration("UPSTREAM_TIMEOUT", &cfg.UpstreamTimeout); err != nil {
		return cfg, err
	}
	if err := loadEnvDuration("RATE_LIMIT_WINDOW", &cfg.RateLimitWindow); err != nil {
		return cfg, err
	}
	if raw := os.Getenv("RATE_LIMIT_SESSIONS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid RATE_LIMIT_SESSIONS: %w", err)
		}
		cfg.RateLimitSessions = n
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Server) Validate() error {
	if c.ConfigStore != StoreFile && c.ConfigStore != StoreRedis {
		return ErrInvalidStore
	}
	if c.ConfigStore == StoreRedis && c.Redis.URL == "" {
		return ErrMissingRedisURL
	}
	if !isOrigin(c.WidgetOrigin) {
		return fmt.Errorf("WIDGET_ORIGIN: %w", ErrInvalidOrigin)
	}
	if !isOrigin(c.KYCAPIOrigin) {
		return fmt.Errorf("KYC_API_ORIGIN: %w", ErrInvalidOrigin)
	}
	embed, err := url.Parse(c.WidgetEmbedURL)
	if err != nil || embed.Scheme+"://"+embed.Host != c.WidgetOrigin {
		return ErrInvalidEmbedURL
	}
	if c.KYCAPIURL != "" {
		u, err := url.Parse(c.KYCAPIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidUpstreamURL
		}
	}
	if c.ConfigSendDelay < 0 || c.FrameReloadDelay < 0 || c.UpstreamTimeout < 0 {
		return ErrNegativeDuration
	}
	if c.RateLimitSessions < 0 || (c.RateLimitSessions > 0 && c.RateLimitWindow <= 0) {
		return ErrInvalidRateLimit
	}
	return nil
}

func isOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" &&
		(u.Path == "" || u.Path == "/") && u.RawQuery == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvDuration accepts Go duration strings or plain milliseconds.
func loadEnvDuration(key string, target *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*target = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = d
	return nil
}
