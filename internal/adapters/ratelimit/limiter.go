package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"tripmind/pkg/errors"
)

// Limiter provides rate limiting for outbound API calls
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a new rate limiter
// requestsPerMinute: maximum number of requests allowed per minute
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	rps := float64(requestsPerMinute) / 60.0

	// Allow burst of 10% of per-minute limit
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Name returns the limiter name used in errors and metrics
func (l *Limiter) Name() string { return l.name }

// Wait blocks until the rate limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrRateLimitExceeded, "rate limiter %s: %v", l.name, err)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// MultiLimiter manages one limiter per upstream API
type MultiLimiter struct {
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*Limiter),
	}
}

// AddLimiter adds a rate limiter for a specific key
func (m *MultiLimiter) AddLimiter(key string, limiter *Limiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[key] = limiter
}

// Get returns the limiter registered under key
func (m *MultiLimiter) Get(key string) (*Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limiters[key]
	return l, ok
}

// Wait waits for all specified limiters; unknown keys are ignored
func (m *MultiLimiter) Wait(ctx context.Context, keys ...string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, key := range keys {
		if limiter, ok := m.limiters[key]; ok {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

const (
	KeyTavily  = "tavily"
	KeyYouTube = "youtube"
)

// NewEnrichmentLimiters creates limiters for the enrichment APIs.
// YouTube search costs 100 quota units per call, so it gets a tenth of the
// budget.
func NewEnrichmentLimiters(requestsPerMinute int) *MultiLimiter {
	m := NewMultiLimiter()
	m.AddLimiter(KeyTavily, NewLimiter("tavily", requestsPerMinute))

	yt := requestsPerMinute / 10
	if yt < 1 {
		yt = 1
	}
	m.AddLimiter(KeyYouTube, NewLimiter("youtube", yt))
	return m
}
