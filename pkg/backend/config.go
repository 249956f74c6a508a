package backend

import (
	"log/slog"
	"time"
)

// Config holds order service client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// SizeCM is the sandwich length sent for every line (15 or 30).
	SizeCM int

	// MaxRetries applies to GET requests only.
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the order service URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithSize sets the sandwich length used at checkout.
func WithSize(cm int) Option {
	return func(c *Config) { c.SizeCM = cm }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the client defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8000",
		Timeout:    10 * time.Second,
		SizeCM:     15,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	return nil
}
