package ratelimit

import (
	"context"
)

// Limiter manages per-client rate limits over a pluggable storage backend.
// Clients are identified by an opaque key (the remote IP, since this service
// has no authentication layer).
type Limiter struct {
	store      Store
	capacity   float64
	refillRate float64
}

// Config holds configuration for the rate limiter.
type Config struct {
	// Storage backend (optional, defaults to MemoryStore)
	Store Store

	// Per-client limits
	RequestsPerSecond float64 // sustained rate
	BurstSize         float64 // burst capacity
}

// DefaultConfig returns sensible defaults: 10 req/sec sustained, 30 burst.
// Scans and chat turns are user-paced, so the limits are modest.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		BurstSize:         30,
	}
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 30
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{
		store:      store,
		capacity:   cfg.BurstSize,
		refillRate: cfg.RequestsPerSecond,
	}
}

// Allow checks if a request from the given client should be allowed.
// An empty key and any store error both fail open.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if key == "" {
		return true
	}
	allowed, _, err := l.store.Allow(ctx, key, l.capacity, l.refillRate)
	if err != nil {
		return true
	}
	return allowed
}

// Remaining returns the number of tokens remaining for the client.
func (l *Limiter) Remaining(key string) float64 {
	if key == "" {
		return l.capacity
	}
	remaining, err := l.store.Remaining(context.Background(), key, l.capacity, l.refillRate)
	if err != nil {
		return l.capacity
	}
	return remaining
}

// Capacity returns the configured burst capacity.
func (l *Limiter) Capacity() float64 { return l.capacity }

// Reset resets the rate limit for a specific client.
func (l *Limiter) Reset(key string) error {
	return l.store.Reset(context.Background(), key)
}

// Close stops the limiter and releases resources.
func (l *Limiter) Close() error {
	return l.store.Close()
}
