package members

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds member API client configuration.
type Config struct {
	BaseURL string

	// PageSize is the page size used when listing members.
	PageSize int

	// MaxPages bounds GetMembers against a server that never reports
	// the last page.
	MaxPages int

	Timeout time.Duration

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the API base URL, e.g. "http://localhost:8080".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithPageSize sets the list page size.
func WithPageSize(n int) Option {
	return func(c *Config) { c.PageSize = n }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a member API on localhost.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8080",
		PageSize:   100,
		MaxPages:   50,
		Timeout:    10 * time.Second,
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
