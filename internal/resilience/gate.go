package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Service keys shared by every outbound client.
const (
	ServiceSearch = "search"
	ServiceFetch  = "fetch"
	ServiceLLM    = "llm"
)

// Gate is consulted before every outbound call. It enforces per-service
// spacing and supplies the retry policy for that service.
type Gate interface {
	BeforeCall(ctx context.Context, service string) error
	Retry(service string) RetryConfig
}

// ServiceLimits configures one service on a SpacingGate.
type ServiceLimits struct {
	// Spacing is the minimum interval between calls. Zero disables spacing.
	Spacing time.Duration
	Retry   RetryConfig
}

// SpacingGate is a process-wide Gate backed by one token bucket per service.
type SpacingGate struct {
	mu       sync.Mutex
	limits   map[string]ServiceLimits
	limiters map[string]*rate.Limiter
}

// NewSpacingGate creates a gate. Services missing from limits are unspaced
// and never retried.
func NewSpacingGate(limits map[string]ServiceLimits) *SpacingGate {
	cp := make(map[string]ServiceLimits, len(limits))
	for k, v := range limits {
		cp[k] = v
	}
	return &SpacingGate{
		limits:   cp,
		limiters: make(map[string]*rate.Limiter),
	}
}

// BeforeCall blocks until service may issue its next call or ctx is done.
func (g *SpacingGate) BeforeCall(ctx context.Context, service string) error {
	return g.limiter(service).Wait(ctx)
}

// Retry returns the retry policy for service.
func (g *SpacingGate) Retry(service string) RetryConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.limits[service]; ok && l.Retry.MaxAttempts > 0 {
		return l.Retry
	}
	return NoRetry()
}

func (g *SpacingGate) limiter(service string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if lim, ok := g.limiters[service]; ok {
		return lim
	}
	limit := rate.Inf
	if s := g.limits[service].Spacing; s > 0 {
		limit = rate.Every(s)
	}
	lim := rate.NewLimiter(limit, 1)
	g.limiters[service] = lim
	return lim
}

// Call runs fn through gate: every attempt waits on the service's spacing
// and transient failures are retried per the service's policy.
func Call[T any](ctx context.Context, gate Gate, service, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := gate.Retry(service)
	if cfg.OnRetry == nil {
		cfg.OnRetry = RetryLogger(service, operation)
	}
	return DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		if err := gate.BeforeCall(ctx, service); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx)
	})
}

// NoopGate never waits and retries every service Attempts times with no
// backoff. Used in tests.
type NoopGate struct {
	Attempts int
}

// BeforeCall returns ctx.Err().
func (NoopGate) BeforeCall(ctx context.Context, _ string) error {
	return ctx.Err()
}

// Retry returns an immediate-retry policy.
func (g NoopGate) Retry(string) RetryConfig {
	n := g.Attempts
	if n <= 0 {
		n = 1
	}
	return RetryConfig{MaxAttempts: n, Multiplier: 1}
}
