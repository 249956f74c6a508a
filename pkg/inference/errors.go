package inference

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrNoModel             = errors.New("inference: model required")
	ErrNoBaseURL           = errors.New("inference: base URL required")
	ErrProviderUnavailable = errors.New("inference: provider unavailable")

	// ErrEmptyResponse is returned when a completion has no choices.
	ErrEmptyResponse = errors.New("inference: no choices returned")
)

// APIError is an OpenAI-style error body returned with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference [%s]: API error %d (%s): %s",
			e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("inference [%s]: API error %d: %s",
		e.Provider, e.StatusCode, e.Message)
}

func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized reports a rejected API key. Retrying cannot help and every
// later chat will fail the same way.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsRetryable reports a rate limit or a 5xx.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.StatusCode >= 500
}

// ProviderError tags err with the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
