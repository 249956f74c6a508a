package tts

import (
	"errors"
	"fmt"
)

var (
	ErrNoAPIKey          = errors.New("tts: API key required")
	ErrNoVoiceID         = errors.New("tts: voice ID required")
	ErrUnsupportedFormat = errors.New("tts: unsupported output format")

	// ErrEmptyText is returned for a reply with nothing to speak.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrProviderUnavailable means the kiosk answers in text only.
	ErrProviderUnavailable = errors.New("tts: provider unavailable")
)

// APIError is a non-2xx answer from the speech endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Code       string // e.g. "invalid_voice"
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tts [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports HTTP 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
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
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
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
