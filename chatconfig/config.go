// Package chatconfig holds runtime tunables for the chat package, configured
// with the functional-options idiom used throughout this module.
package chatconfig

import "time"

// Config holds tunables that govern transport and mediator behavior. The
// zero value is invalid; use New to obtain one with defaults applied.
type Config struct {
	// SocketQueueCapacity bounds the socket transport's event queue (§4.C).
	SocketQueueCapacity int

	// ReconnectBackoffMin and ReconnectBackoffMax bound the socket
	// transport's reconnect backoff: ensureConnected retries a failed
	// connect starting at ReconnectBackoffMin and doubling up to
	// ReconnectBackoffMax until it succeeds or ctx ends. Pass these through
	// to socket.Options.ReconnectBackoffMin/Max; a zero ReconnectBackoffMin
	// disables retrying (single attempt, surfaced to the caller).
	ReconnectBackoffMin time.Duration
	ReconnectBackoffMax time.Duration

	// UploadConcurrency bounds how many files upload in parallel (§4.D).
	UploadConcurrency int

	// TriggerTimeout bounds how long a single Send (and its continuation
	// rounds) may run before its context is cancelled. Pass through to
	// chatreduce.Options.TriggerTimeout. Zero disables the timeout.
	TriggerTimeout time.Duration
}

// Option configures a Config.
type Option func(*Config)

// New builds a Config with sensible defaults, then applies opts in order.
func New(opts ...Option) *Config {
	c := &Config{
		SocketQueueCapacity: 64,
		ReconnectBackoffMin: 250 * time.Millisecond,
		ReconnectBackoffMax: 10 * time.Second,
		UploadConcurrency:   4,
		TriggerTimeout:      0,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSocketQueueCapacity overrides the socket transport's event queue
// capacity.
func WithSocketQueueCapacity(n int) Option {
	return func(c *Config) { c.SocketQueueCapacity = n }
}

// WithReconnectBackoff overrides the socket transport's reconnect backoff
// bounds.
func WithReconnectBackoff(min, max time.Duration) Option {
	return func(c *Config) {
		c.ReconnectBackoffMin = min
		c.ReconnectBackoffMax = max
	}
}

// WithUploadConcurrency overrides the file uploader's concurrency bound.
func WithUploadConcurrency(n int) Option {
	return func(c *Config) { c.UploadConcurrency = n }
}

// WithTriggerTimeout overrides how long a single Send (and its continuation
// rounds) may run before its context is cancelled.
func WithTriggerTimeout(d time.Duration) Option {
	return func(c *Config) { c.TriggerTimeout = d }
}
