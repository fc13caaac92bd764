// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package ratelimit provides a per-caller token bucket limiter.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default limiter values.
const (
	// DefaultBurst is the number of calls a caller may make back to back.
	DefaultBurst = 3

	// DefaultRate is the number of tokens refilled per second.
	DefaultRate = 0.5

	// MinRate keeps the refill rate from collapsing to zero.
	MinRate = 0.01

	// DefaultCleanupInterval is how often idle buckets are dropped.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultIdleMaxAge is how long an untouched bucket is kept.
	DefaultIdleMaxAge = time.Hour
)

// Config configures a Limiter. Zero values select the defaults.
type Config struct {
	// Burst is the bucket capacity.
	Burst int

	// Rate is the refill rate in tokens per second.
	Rate float64

	// CleanupInterval is the period of the background cleanup.
	CleanupInterval time.Duration

	// IdleMaxAge is the age after which an idle bucket is removed.
	IdleMaxAge time.Duration

	// Name labels the bucket gauge when a registry is supplied.
	Name string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter tracks one token bucket per caller key. It is safe for concurrent use.
//
// The Limiter runs a background goroutine that drops idle buckets.
// Call Close to stop it.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	burst      int
	rate       float64
	idleMaxAge time.Duration
	now        func() time.Time

	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	gauge prometheus.Gauge
}

// New creates a limiter and starts its cleanup goroutine.
func New(cfg Config) *Limiter {
	return newLimiter(cfg, nil)
}

// NewWithRegistry creates a limiter that reports its bucket count to reg.
func NewWithRegistry(cfg Config, reg prometheus.Registerer) *Limiter {
	return newLimiter(cfg, reg)
}

func newLimiter(cfg Config, reg prometheus.Registerer) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}

	rate := cfg.Rate
	if rate <= 0 {
		rate = DefaultRate
	}
	if rate < MinRate {
		rate = MinRate
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	idleMaxAge := cfg.IdleMaxAge
	if idleMaxAge <= 0 {
		idleMaxAge = DefaultIdleMaxAge
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	l := &Limiter{
		buckets:    make(map[string]*bucket),
		burst:      burst,
		rate:       rate,
		idleMaxAge: idleMaxAge,
		now:        now,
		stopChan:   make(chan struct{}),
	}

	if reg != nil {
		name := cfg.Name
		if name == "" {
			name = "default"
		}
		l.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "gatekeeper_ratelimiter_buckets",
			Help:        "Current number of tracked rate limiter buckets",
			ConstLabels: prometheus.Labels{"limiter": name},
		})
		reg.MustRegister(l.gauge)
	}

	l.wg.Add(1)
	go l.cleanupLoop(cleanupInterval)

	return l
}

// Allow consumes a token for key if one is available.
// Returns (allowed, retryAfter) where retryAfter is the time until the next
// token when the call is rejected.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > float64(l.burst) {
			b.tokens = float64(l.burst)
		}
		b.lastCheck = now
	}

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}

	deficit := 1.0 - b.tokens
	return false, time.Duration(deficit / l.rate * float64(time.Second))
}

// Len returns the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup removes buckets that have been idle for longer than maxAge.
func (l *Limiter) Cleanup(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := l.now().Add(-maxAge)
	for key, b := range l.buckets {
		if b.lastCheck.Before(threshold) {
			delete(l.buckets, key)
		}
	}

	if l.gauge != nil {
		l.gauge.Set(float64(len(l.buckets)))
	}
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.Cleanup(l.idleMaxAge)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
}
