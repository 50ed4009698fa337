package transport

import (
	"log/slog"
	"time"
)

// Status is the connection state reported by a Manager.
type Status string

const (
	StatusConnecting Status = "CONNECTING"
	StatusOpen       Status = "OPEN"
	StatusClosing    Status = "CLOSING"
	StatusClosed     Status = "CLOSED"
	StatusError      Status = "ERROR"
)

// Config holds connection manager configuration.
type Config struct {
	URL string

	// Reconnection
	Reconnect            bool
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	// Timeouts
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration // 0 disables keepalive pings
	PollInterval     time.Duration // WaitForOpen polling cadence

	// Lifecycle callbacks, invoked without internal locks held.
	OnOpen  func()
	OnClose func()
	OnError func(err error)

	Logger *slog.Logger
}

// Option is a functional option for configuring a Manager.
type Option func(*Config)

// WithReconnect enables or disables automatic reconnection.
func WithReconnect(enabled bool) Option {
	return func(c *Config) { c.Reconnect = enabled }
}

// WithReconnectPolicy sets the fixed retry interval and attempt budget.
func WithReconnectPolicy(interval time.Duration, maxAttempts int) Option {
	return func(c *Config) {
		c.ReconnectInterval = interval
		c.MaxReconnectAttempts = maxAttempts
	}
}

// WithHandshakeTimeout bounds each dial.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) { c.HandshakeTimeout = d }
}

// WithPingInterval sets the keepalive ping cadence.
func WithPingInterval(d time.Duration) Option {
	return func(c *Config) { c.PingInterval = d }
}

// WithPollInterval sets how often WaitForOpen checks the status.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

// WithOnOpen sets the open callback.
func WithOnOpen(fn func()) Option {
	return func(c *Config) { c.OnOpen = fn }
}

// WithOnClose sets the close callback.
func WithOnClose(fn func()) Option {
	return func(c *Config) { c.OnClose = fn }
}

// WithOnError sets the error callback.
func WithOnError(fn func(err error)) Option {
	return func(c *Config) { c.OnError = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the connection defaults of the recognition service client.
func DefaultConfig() *Config {
	return &Config{
		URL:                  "ws://localhost:9000/ws",
		Reconnect:            true,
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		PingInterval:         30 * time.Second,
		PollInterval:         100 * time.Millisecond,
		Logger:               slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
