// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/crypto"
	"github.com/holomush/gatekeeper/internal/event"
	"github.com/holomush/gatekeeper/internal/event/kafka"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/messages"
	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/premium"
	"github.com/holomush/gatekeeper/internal/proxy"
	"github.com/holomush/gatekeeper/internal/ratelimit"
	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/internal/user"
)

// databaseURL returns the configured database URL, falling back to the
// DATABASE_URL environment variable.
func databaseURL(cfg *config.Config) string {
	if cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}

// runtimeOptions are the process-level collaborators a runtime reports to.
// Both are optional.
type runtimeOptions struct {
	registry prometheus.Registerer
	metrics  *observability.Metrics
}

// runtime is a fully wired gatekeeper plus the resources it owns.
type runtime struct {
	gk     *proxy.Gatekeeper
	logger *logging.Logger
	pool   *pgxpool.Pool
	redis  *premium.RedisCache

	closers []func() error
}

// buildRuntime wires every component from cfg. The configuration file is
// re-read by the holder so later reloads see the same sources.
func buildRuntime(ctx context.Context, gopts *globalOptions, flags *pflag.FlagSet, cfg *config.Config, opts runtimeOptions) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.logger, err = logging.SetDefault(logging.Options{
		Service: "gatekeeper",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})
	if err != nil {
		return nil, err
	}
	logger := rt.logger.Logger

	hashes := crypto.NewDefaultRegistry()
	backends := platform.NewStandalone(cfg.Servers, logger)
	holder, err := config.NewHolder(gopts.path(), flags, proxy.Validator(backends, hashes))
	if err != nil {
		return nil, err
	}

	msgs, err := messages.New(cfg.Messages, messages.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	users, err := rt.openUsers(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	resolver, err := rt.newResolver(cfg, logger, opts.registry)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()
	if err := rt.exportEvents(cfg, bus, logger, opts.registry); err != nil {
		return nil, err
	}

	rt.gk, err = proxy.New(proxy.Deps{
		Config:    holder,
		Messages:  msgs,
		Proxy:     backends,
		Scheduler: platform.TimerScheduler{},
		Users:     users,
		Crypto:    hashes,
		Resolver:  resolver,
		Bus:       bus,
		Registry:  opts.registry,
		Metrics:   opts.metrics,
		Logger:    rt.logger,
	})
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() error {
		rt.gk.Close()
		return nil
	})
	return rt, nil
}

func (rt *runtime) openUsers(ctx context.Context, cfg *config.Config, logger *slog.Logger) (user.Store, error) {
	url := databaseURL(cfg)
	if url == "" {
		logger.Warn("no database configured, accounts are kept in memory")
		return user.NewMemoryStore(), nil
	}
	pool, err := store.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	rt.pool = pool
	rt.closers = append(rt.closers, func() error {
		pool.Close()
		return nil
	})
	logger.Info("connected to database")
	return store.NewUserRepository(pool), nil
}

func (rt *runtime) newResolver(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*premium.Resolver, error) {
	client, err := premium.NewHTTPClient(cfg.Premium.APIURL, cfg.Premium.Timeout)
	if err != nil {
		return nil, err
	}

	var cache premium.Cache = premium.NewMemoryCache()
	if cfg.Redis.URL != "" {
		rt.redis, err = premium.NewRedisCacheFromURL(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, rt.redis.Close)
		cache = rt.redis
	}

	limiter := ratelimit.NewWithRegistry(ratelimit.Config{
		Name:  "premium",
		Burst: cfg.Premium.Burst,
		Rate:  cfg.Premium.Rate,
	}, reg)
	rt.closers = append(rt.closers, func() error {
		limiter.Close()
		return nil
	})

	opts := []premium.Option{
		premium.WithCache(cache, cfg.Premium.CacheTTL),
		premium.WithLimiter(limiter),
		premium.WithLogger(logger),
	}
	if reg != nil {
		opts = append(opts, premium.WithRegistry(reg))
	}
	return premium.NewResolver(client, opts...)
}

func (rt *runtime) exportEvents(cfg *config.Config, bus *event.Bus, logger *slog.Logger, reg prometheus.Registerer) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}

	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_event_export_failures_total",
		Help: "Domain events that could not be written to Kafka",
	})
	if reg != nil {
		reg.MustRegister(failures)
	}

	pub, err := kafka.NewPublisher(
		kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic),
		kafka.WithLogger(logger),
		kafka.WithFailureHook(failures.Inc),
	)
	if err != nil {
		return err
	}
	unsubscribe := bus.Subscribe(pub)
	rt.closers = append(rt.closers, func() error {
		unsubscribe()
		return pub.Close()
	})
	logger.Info("exporting events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return nil
}

// checks returns the readiness checks for the resources rt owns.
func (rt *runtime) checks() map[string]observability.Check {
	checks := map[string]observability.Check{}
	if rt.pool != nil {
		checks["database"] = rt.pool.Ping
	}
	if rt.redis != nil {
		checks["redis"] = rt.redis.Ping
	}
	return checks
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if len(errs) > 0 {
		return oops.Code("RUNTIME_CLOSE_FAILED").Wrap(errors.Join(errs...))
	}
	return nil
}
