// Package client is a typed client for the demo's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	kycModels "github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/login"
	loginHandler "github.com/soyYisus/jaak-kyc-demo/internal/login/handler"
	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/steps"
	stepsHandler "github.com/soyYisus/jaak-kyc-demo/internal/steps/handler"
)

const (
	DefaultTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     map[string]string
	Body       []byte
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, msg)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetConfig(ctx context.Context) (models.SessionConfig, error) {
	var cfg models.SessionConfig
	err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg)
	return cfg, err
}

// SaveSteps replaces the stored step list and returns the saved config.
func (c *Client) SaveSteps(ctx context.Context, keys []string) (models.SessionConfig, error) {
	if keys == nil {
		keys = []string{}
	}
	var resp models.SaveStepsResponse
	err := c.do(ctx, http.MethodPost, "/api/config", map[string][]string{"steps": keys}, &resp)
	return resp.Config, err
}

// CreateFlow opens a provider session through the proxy.
func (c *Client) CreateFlow(ctx context.Context, req kycModels.FlowRequest) (*kycModels.FlowResponse, error) {
	var resp kycModels.FlowResponse
	if err := c.do(ctx, http.MethodPost, "/api/kyc/flow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login submits the login form. Field errors come back in APIError.Fields.
func (c *Client) Login(ctx context.Context, form login.Form) (*loginHandler.Response, error) {
	var resp loginHandler.Response
	if err := c.do(ctx, http.MethodPost, "/api/login", form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Steps fetches the step catalogue.
func (c *Client) Steps(ctx context.Context) ([]steps.Step, error) {
	var resp stepsHandler.CatalogResponse
	if err := c.do(ctx, http.MethodGet, "/api/steps", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Steps, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	apiErr := &APIError{StatusCode: status, Body: raw}
	if !gjson.ValidBytes(raw) {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	root := gjson.ParseBytes(raw)
	apiErr.Message = root.Get("message").String()
	if code := root.Get("error"); code.Type == gjson.String {
		apiErr.Code = code.Str
	}
	if fields := root.Get("fields"); fields.IsObject() {
		apiErr.Fields = make(map[string]string)
		fields.ForEach(func(k, v gjson.Result) bool {
			apiErr.Fields[k.String()] = v.String()
			return true
		})
	}
	return apiErr
}
