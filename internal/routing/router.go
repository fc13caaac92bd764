// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package routing picks backend servers for players and decides how a
// connection attempt proceeds before it is accepted.
package routing

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/user"
)

// CodeNoDestination is returned when no candidate server is available.
const CodeNoDestination = "ROUTING_NO_DESTINATION"

// Pool names used in errors and metrics.
const (
	PoolLobby = "lobby"
	PoolLimbo = "limbo"
)

// Patterns is an ordered list of compiled server name patterns.
type Patterns struct {
	raw   []string
	globs []glob.Glob
}

// Compile parses server name patterns. Plain names match themselves;
// '*', '?', '[...]' and '{a,b}' are glob syntax.
func Compile(patterns []string) (Patterns, error) {
	p := Patterns{raw: append([]string(nil), patterns...)}
	for _, raw := range patterns {
		g, err := glob.Compile(raw)
		if err != nil {
			return Patterns{}, oops.Code("CONFIG_INVALID").
				With("pattern", raw).
				Wrapf(err, "invalid server pattern")
		}
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// Raw returns the source patterns.
func (p Patterns) Raw() []string {
	return append([]string(nil), p.raw...)
}

// Empty reports whether there are no patterns.
func (p Patterns) Empty() bool {
	return len(p.globs) == 0
}

// Expand resolves the patterns against the registered servers. The result
// follows pattern order; servers matched by several patterns appear once,
// at their first match.
func (p Patterns) Expand(servers []string) []string {
	seen := make(map[string]struct{}, len(servers))
	var out []string
	for _, g := range p.globs {
		for _, s := range servers {
			if _, dup := seen[s]; dup {
				continue
			}
			if g.Match(s) {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	return out
}

// Unmatched returns the patterns that match no registered server.
func (p Patterns) Unmatched(servers []string) []string {
	var out []string
	for i, g := range p.globs {
		matched := false
		for _, s := range servers {
			if g.Match(s) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, p.raw[i])
		}
	}
	return out
}

type pools struct {
	limbo       Patterns
	passThrough Patterns
}

// Router selects the least-loaded server from a candidate pool.
type Router struct {
	proxy  platform.Proxy
	pools  atomic.Pointer[pools]
	logger *slog.Logger

	failures *prometheus.CounterVec
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithRegistry registers routing metrics with reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(r *Router) {
		r.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_routing_failures_total",
			Help: "Routing attempts that found no destination",
		}, []string{"pool"})
		reg.MustRegister(r.failures)
	}
}

// NewRouter creates a router over proxy with empty pools. Call Configure
// before routing.
func NewRouter(proxy platform.Proxy, opts ...Option) (*Router, error) {
	if proxy == nil {
		return nil, oops.Code("ROUTING_INVALID_CONFIG").Errorf("proxy is required")
	}
	r := &Router{proxy: proxy, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.pools.Store(&pools{})
	return r, nil
}

// Configure atomically replaces the limbo and pass-through pools.
// Validation against the registered servers is the caller's job.
func (r *Router) Configure(limbo, passThrough []string) error {
	l, err := Compile(limbo)
	if err != nil {
		return err
	}
	p, err := Compile(passThrough)
	if err != nil {
		return err
	}
	r.pools.Store(&pools{limbo: l, passThrough: p})
	return nil
}

// ChooseDestination returns the candidate with the fewest connected players.
// Ties go to the earliest candidate. Candidates the proxy does not know are
// skipped.
func (r *Router) ChooseDestination(candidates []string) (string, error) {
	best := ""
	bestCount := 0
	for _, name := range candidates {
		count, ok := r.proxy.PlayerCount(name)
		if !ok {
			continue
		}
		if best == "" || count < bestCount {
			best, bestCount = name, count
		}
	}
	if best == "" {
		return "", oops.Code(CodeNoDestination).
			With("candidates", candidates).
			Errorf("no destination available")
	}
	return best, nil
}

// ChooseLobby picks a pass-through server for an authorized player.
func (r *Router) ChooseLobby(ctx context.Context, u *user.User) (string, error) {
	return r.choose(ctx, PoolLobby, r.pools.Load().passThrough, u)
}

// ChooseLimbo picks a staging server for an unauthorized player.
func (r *Router) ChooseLimbo(ctx context.Context, u *user.User) (string, error) {
	return r.choose(ctx, PoolLimbo, r.pools.Load().limbo, u)
}

// PassThrough returns the expanded pass-through pool.
func (r *Router) PassThrough() []string {
	return r.pools.Load().passThrough.Expand(r.proxy.Servers())
}

// Limbo returns the expanded limbo pool.
func (r *Router) Limbo() []string {
	return r.pools.Load().limbo.Expand(r.proxy.Servers())
}

func (r *Router) choose(ctx context.Context, pool string, patterns Patterns, u *user.User) (string, error) {
	server, err := r.ChooseDestination(patterns.Expand(r.proxy.Servers()))
	if err != nil {
		if r.failures != nil {
			r.failures.WithLabelValues(pool).Inc()
		}
		b := oops.Code(CodeNoDestination).With("pool", pool).With("patterns", patterns.Raw())
		if u != nil {
			b = b.With("user", u.LastNickname)
		}
		return "", b.Wrap(err)
	}
	r.logger.DebugContext(ctx, "routing player", "pool", pool, "server", server)
	return server, nil
}
