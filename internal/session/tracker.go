// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session tracks connections that have not authenticated yet.
//
// A connection is "unauthorized" while it is tracked. Identities that were
// never tracked, or whose tracking stopped, are authorized; this covers
// players that never needed a password (premium accounts) without any
// extra bookkeeping.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/platform"
)

// DefaultPromptDelay is how long after tracking starts the first hint is sent.
const DefaultPromptDelay = 250 * time.Millisecond

// Prompter sends the login or registration hint to a pending connection.
type Prompter interface {
	Prompt(ctx context.Context, id uuid.UUID, target platform.Target)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, id uuid.UUID, target platform.Target)

// Prompt implements Prompter.
func (f PrompterFunc) Prompt(ctx context.Context, id uuid.UUID, target platform.Target) {
	f(ctx, id, target)
}

type pending struct {
	target platform.Target
	gen    uint64
}

// Hold is a tracking entry taken out by Suspend. It can be put back with
// Resume only while no disconnect or new tracking has happened since.
type Hold struct {
	id     uuid.UUID
	target platform.Target
	gen    uint64
}

// Tracker is the authoritative set of unauthorized connections.
// All methods are safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	pending map[uuid.UUID]pending
	held    map[uuid.UUID]uint64
	nextGen uint64

	scheduler platform.Scheduler
	prompter  Prompter
	delay     time.Duration
	logger    *slog.Logger
	gauge     prometheus.Gauge
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPromptDelay overrides DefaultPromptDelay.
func WithPromptDelay(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.delay = d
		}
	}
}

// WithLogger sets the tracker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithRegistry reports the number of pending connections to reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(t *Tracker) {
		if reg == nil {
			return
		}
		t.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_unauthorized_sessions",
			Help: "Connections currently waiting to authenticate",
		})
		reg.MustRegister(t.gauge)
	}
}

// NewTracker creates a tracker. scheduler and prompter are required.
func NewTracker(scheduler platform.Scheduler, prompter Prompter, opts ...Option) (*Tracker, error) {
	if scheduler == nil {
		return nil, oops.Code("SESSION_INVALID_DEPENDENCY").Errorf("scheduler is required")
	}
	if prompter == nil {
		return nil, oops.Code("SESSION_INVALID_DEPENDENCY").Errorf("prompter is required")
	}
	t := &Tracker{
		pending:   make(map[uuid.UUID]pending),
		held:      make(map[uuid.UUID]uint64),
		scheduler: scheduler,
		prompter:  prompter,
		delay:     DefaultPromptDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// StartTracking marks id as unauthorized and schedules one prompt.
// Calling it again for an already tracked id changes nothing.
func (t *Tracker) StartTracking(id uuid.UUID, target platform.Target) {
	t.mu.Lock()
	if _, exists := t.pending[id]; exists {
		t.mu.Unlock()
		return
	}
	delete(t.held, id)
	t.nextGen++
	gen := t.nextGen
	t.pending[id] = pending{target: target, gen: gen}
	t.updateGaugeLocked()
	t.mu.Unlock()

	t.logger.Debug("tracking unauthorized connection", "id", id.String())
	t.scheduler.Schedule(t.delay, func() { t.firePrompt(id, gen) })
}

// Suspend removes id from the tracked set and returns a hold that can
// restore it. ok is false when id was not tracked.
func (t *Tracker) Suspend(id uuid.UUID) (h Hold, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, exists := t.pending[id]
	if !exists {
		return Hold{}, false
	}
	delete(t.pending, id)
	t.held[id] = p.gen
	t.updateGaugeLocked()
	return Hold{id: id, target: p.target, gen: p.gen}, true
}

// Resume puts a suspended entry back without scheduling a new prompt. It
// reports false, changing nothing, when the identity disconnected or was
// tracked again after Suspend.
func (t *Tracker) Resume(h Hold) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen, ok := t.held[h.id]; !ok || gen != h.gen {
		return false
	}
	delete(t.held, h.id)
	t.pending[h.id] = pending{target: h.target, gen: h.gen}
	t.updateGaugeLocked()
	return true
}

// Release drops a hold once the suspended entry is no longer needed.
func (t *Tracker) Release(h Hold) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen, ok := t.held[h.id]; ok && gen == h.gen {
		delete(t.held, h.id)
	}
}

// StopTracking removes id and reports whether it was tracked. Any hold on
// id is invalidated, so a disconnect is final. It is a no-op for ids that
// are not tracked.
func (t *Tracker) StopTracking(id uuid.UUID) (wasTracked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, id)
	if _, exists := t.pending[id]; !exists {
		return false
	}
	delete(t.pending, id)
	t.updateGaugeLocked()
	return true
}

// IsAuthorized reports whether id is not tracked.
func (t *Tracker) IsAuthorized(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, tracked := t.pending[id]
	return !tracked
}

// Pending returns a snapshot of the tracked ids.
func (t *Tracker) Pending() []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked connections.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// NotifyAllPending re-sends the prompt to every tracked connection.
// It works on a snapshot, so a connection that authenticates concurrently
// may receive one extra prompt.
func (t *Tracker) NotifyAllPending(ctx context.Context) {
	t.mu.Lock()
	snapshot := make(map[uuid.UUID]platform.Target, len(t.pending))
	for id, p := range t.pending {
		snapshot[id] = p.target
	}
	t.mu.Unlock()

	for id, target := range snapshot {
		t.prompter.Prompt(ctx, id, target)
	}
}

// firePrompt runs on the scheduler. Membership is checked now, not when
// the prompt was scheduled, and only the tracking that scheduled it counts.
func (t *Tracker) firePrompt(id uuid.UUID, gen uint64) {
	t.mu.Lock()
	p, ok := t.pending[id]
	t.mu.Unlock()

	if !ok || p.gen != gen {
		return
	}
	t.prompter.Prompt(context.Background(), id, p.target)
}

func (t *Tracker) updateGaugeLocked() {
	if t.gauge != nil {
		t.gauge.Set(float64(len(t.pending)))
	}
}
