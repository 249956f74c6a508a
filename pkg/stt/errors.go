package stt

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrEmptyAudio is returned for an empty upload.
	ErrEmptyAudio = errors.New("stt: empty audio")

	// ErrUnsupportedMedia is returned when the upload is neither audio nor video.
	ErrUnsupportedMedia = errors.New("stt: unsupported media type")

	// ErrTooLarge is returned when the upload exceeds the size limit.
	ErrTooLarge = errors.New("stt: audio too large")
)

// MediaError reports the offending content type. It matches
// ErrUnsupportedMedia with errors.Is.
type MediaError struct {
	ContentType string
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("stt: not audio or video: content_type=%q", e.ContentType)
}

func (e *MediaError) Is(target error) bool {
	return target == ErrUnsupportedMedia
}

// APIError represents an error response from a transcription API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Code is the error code (if provided).
	Code string

	// Provider identifies which provider returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stt [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("stt [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsRetryable reports a rate limit or a 5xx.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.StatusCode >= 500
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("stt [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
