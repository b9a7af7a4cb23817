package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory defines the normalized failure taxonomy.
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the provider rejected the request or answered with garbage
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates the bearer token was refused
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the provider is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates a local failure before or after the call
	ErrorInternal ErrorCategory = "internal"
)

// UpstreamError carries a failed provider call. StatusCode is zero when no
// HTTP response was received.
type UpstreamError struct {
	Category   ErrorCategory
	StatusCode int
	Body       []byte
	Message    string
	Underlying error
	Retryable  bool
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("kyc provider [%s] status %d: %s", e.Category, e.StatusCode, e.Message)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("kyc provider [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("kyc provider [%s]: %s", e.Category, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Underlying
}

// HTTPStatus is the status relayed to our own caller. It is always an error
// status.
func (e *UpstreamError) HTTPStatus() int {
	switch {
	case e.StatusCode == 0:
		return http.StatusInternalServerError
	case e.StatusCode < 400:
		return http.StatusBadGateway
	}
	return e.StatusCode
}

// NewUpstreamError creates a categorised provider error. Retryable is
// informational only; calls are never retried.
func NewUpstreamError(category ErrorCategory, status int, body []byte, message string, underlying error) *UpstreamError {
	return &UpstreamError{
		Category:   category,
		StatusCode: status,
		Body:       body,
		Message:    message,
		Underlying: underlying,
		Retryable: category == ErrorTimeout ||
			category == ErrorProviderOutage ||
			category == ErrorRateLimited,
	}
}

// CategoryForStatus maps a non-2xx status to the taxonomy.
func CategoryForStatus(status int) ErrorCategory {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorAuthentication
	case status == http.StatusTooManyRequests:
		return ErrorRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorTimeout
	case status >= 500:
		return ErrorProviderOutage
	case status >= 400:
		return ErrorBadData
	default:
		return ErrorInternal
	}
}

// GetCategory extracts the error category from an error.
func GetCategory(err error) ErrorCategory {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Category
	}
	return ErrorInternal
}

// IsRetryable reports whether a later attempt might succeed.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}

var ErrNotConfigured = errors.New("KYC_API_URL is not configured")
