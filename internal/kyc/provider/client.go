package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
)

const maxResponseBytes = 1 << 20

// Client calls the provider's session-creation endpoint. One attempt per call.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout bounds each call; zero leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

func New(url, token string, opts ...Option) *Client {
	c := &Client{url: url, token: token, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession posts req and returns the provider's JSON response body.
func (c *Client) CreateSession(ctx context.Context, req models.FlowRequest) (json.RawMessage, error) {
	if c.url == "" {
		return nil, NewUpstreamError(ErrorInternal, 0, nil, "provider endpoint missing", ErrNotConfigured)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, NewUpstreamError(ErrorInternal, 0, nil, "encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, NewUpstreamError(ErrorInternal, 0, nil, "build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		status := resp.StatusCode
		if status >= 200 && status <= 299 {
			status = http.StatusBadGateway
		}
		return nil, NewUpstreamError(ErrorProviderOutage, status, nil, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewUpstreamError(CategoryForStatus(resp.StatusCode), resp.StatusCode, body,
			fmt.Sprintf("unexpected status %s", strings.TrimSpace(http.StatusText(resp.StatusCode))), nil)
	}
	if !gjson.ValidBytes(body) {
		return nil, NewUpstreamError(ErrorBadData, http.StatusBadGateway, body, "response is not JSON", nil)
	}
	return body, nil
}

func transportError(err error) *UpstreamError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewUpstreamError(ErrorTimeout, 0, nil, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewUpstreamError(ErrorInternal, 0, nil, "request cancelled", err)
	}
	return NewUpstreamError(ErrorProviderOutage, 0, nil, "request failed", err)
}
