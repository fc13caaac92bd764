// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package premium

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/holomush/gatekeeper/internal/ratelimit"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

var tracer = otel.Tracer("gatekeeper/premium")

// Lookup outcomes reported by the lookups metric.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
)

// Resolver maps display names to trusted identities.
type Resolver struct {
	client   Client
	cache    Cache
	cacheTTL time.Duration
	limiter  *ratelimit.Limiter
	logger   *slog.Logger

	lookups   *prometheus.CounterVec
	cacheHits prometheus.Counter
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache enables result caching.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = cache
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// WithLimiter sets the per-caller throttle. The resolver does not own the
// limiter; the caller closes it.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(r *Resolver) { r.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithRegistry registers lookup metrics with reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(r *Resolver) {
		r.lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_premium_lookups_total",
			Help: "Premium identity lookups by outcome",
		}, []string{"outcome"})
		r.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_premium_cache_hits_total",
			Help: "Premium identity lookups served from cache",
		})
		reg.MustRegister(r.lookups, r.cacheHits)
	}
}

// NewResolver creates a resolver over client.
func NewResolver(client Client, opts ...Option) (*Resolver, error) {
	if client == nil {
		return nil, oops.Code("PREMIUM_INVALID_CONFIG").Errorf("client is required")
	}
	r := &Resolver{
		client:   client,
		cacheTTL: DefaultCacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the trusted identity for name, or nil when the name has
// none. caller keys the local throttle; rejected calls fail with
// CodeThrottled without touching the cache or the network.
func (r *Resolver) Resolve(ctx context.Context, caller, name string) (*Identity, error) {
	ctx, span := tracer.Start(ctx, "premium.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("premium.caller", caller), attribute.String("premium.name", name))

	id, err := r.resolve(ctx, caller, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		issue, _ := IssueOf(err)
		r.count(issue.String())
		return nil, err
	}
	if id == nil {
		r.count(OutcomeNotFound)
	} else {
		r.count(OutcomeFound)
	}
	span.SetAttributes(attribute.Bool("premium.found", id != nil))
	return id, nil
}

func (r *Resolver) resolve(ctx context.Context, caller, name string) (*Identity, error) {
	if r.limiter != nil {
		if ok, retryAfter := r.limiter.Allow(caller); !ok {
			return nil, oops.Code(CodeThrottled).
				With("name", name).
				With("caller", caller).
				With("retry_after_ms", retryAfter.Milliseconds()).
				Errorf("too many lookups")
		}
	}

	if r.cache != nil {
		id, hit, err := r.cache.Get(ctx, name)
		switch {
		case err != nil:
			errutil.LogErrorContext(ctx, r.logger, slog.LevelWarn, "premium cache read failed", err)
		case hit:
			if r.cacheHits != nil {
				r.cacheHits.Inc()
			}
			return id, nil
		}
	}

	id, err := r.client.Lookup(ctx, name)
	if err != nil {
		if _, classified := IssueOf(err); !classified {
			err = newError(IssueUndefined, name, err)
		}
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, name, id, r.cacheTTL); err != nil {
			errutil.LogErrorContext(ctx, r.logger, slog.LevelWarn, "premium cache write failed", err)
		}
	}
	return id, nil
}

func (r *Resolver) count(outcome string) {
	if r.lookups != nil {
		r.lookups.WithLabelValues(outcome).Inc()
	}
}

// DefaultBackoff retries a throttled lookup a few times with exponential delay.
func DefaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
}

// ResolveWithBackoff calls Resolve and retries only throttled failures
// according to b. Server exceptions and undefined failures are returned
// immediately.
func (r *Resolver) ResolveWithBackoff(ctx context.Context, caller, name string, b retry.Backoff) (*Identity, error) {
	var id *Identity
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		id, err = r.Resolve(ctx, caller, name)
		if err == nil {
			return nil
		}
		if issue, _ := IssueOf(err); issue == IssueThrottled {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}
