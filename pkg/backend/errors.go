package backend

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-kiosk/internal/httpc"
)

// Sentinel errors for common conditions.
var (
	// ErrNoBaseURL is returned when no order service URL is configured.
	ErrNoBaseURL = errors.New("backend: base URL required")

	// ErrEmptyCart is returned when Submit is called with nothing to order.
	ErrEmptyCart = errors.New("backend: cart is empty")

	// ErrUnknownMenu is returned when a cart line names a menu the order
	// service does not list.
	ErrUnknownMenu = errors.New("backend: unknown menu")

	// ErrNoOrderID is returned when order creation yields no id.
	ErrNoOrderID = errors.New("backend: order service returned no order id")
)

// APIError represents a non-2xx response from the order service.
type APIError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound returns true for HTTP 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// SubmitError reports a checkout that failed after the order was created.
// OrderID should be passed back to Submit to finish the same order.
type SubmitError struct {
	OrderID int
	Err     error
}

// Error implements the error interface.
func (e *SubmitError) Error() string {
	return fmt.Sprintf("backend: order %d incomplete: %v", e.OrderID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SubmitError) Unwrap() error {
	return e.Err
}

func apiError(method, path string, err error) error {
	var se *httpc.StatusError
	if errors.As(err, &se) {
		return &APIError{StatusCode: se.StatusCode, Message: se.Body, Method: method, Path: path}
	}
	return fmt.Errorf("backend: %s %s: %w", method, path, err)
}
