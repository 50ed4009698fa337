package recognition

import (
	"log/slog"
	"time"
)

// Config holds orchestrator timing.
type Config struct {
	// ResponseTimeout is how long a request may stay unanswered before it
	// is sent again.
	ResponseTimeout time.Duration

	// FollowUpDelay spaces the repeated requests made while a face stays NEAR.
	FollowUpDelay time.Duration

	// MemberTimeout bounds each member API call made while resolving.
	MemberTimeout time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Config)

// WithResponseTimeout sets the per-request response timeout.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *Config) { c.ResponseTimeout = d }
}

// WithFollowUpDelay sets the NEAR follow-up delay.
func WithFollowUpDelay(d time.Duration) Option {
	return func(c *Config) { c.FollowUpDelay = d }
}

// WithMemberTimeout bounds member API calls.
func WithMemberTimeout(d time.Duration) Option {
	return func(c *Config) { c.MemberTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the kiosk's request timing.
func DefaultConfig() *Config {
	return &Config{
		ResponseTimeout: 5 * time.Second,
		FollowUpDelay:   100 * time.Millisecond,
		MemberTimeout:   10 * time.Second,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
