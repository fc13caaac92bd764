// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package access decides what unauthenticated senders may do: chat is
// blocked and only allow-listed command prefixes pass.
package access

import (
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Kinds of gated actions, used as metric labels.
const (
	KindChat    = "chat"
	KindCommand = "command"
)

// Authorizer reports whether a connection has authenticated.
type Authorizer interface {
	IsAuthorized(id uuid.UUID) bool
}

// Sender identifies who issued a chat line or command.
type Sender struct {
	ID uuid.UUID
	// Console is set for the proxy console and other non-player sources.
	Console bool
}

// Player returns a player sender.
func Player(id uuid.UUID) Sender {
	return Sender{ID: id}
}

// Console returns the console sender.
func Console() Sender {
	return Sender{Console: true}
}

// Gate blocks chat and most commands from unauthorized players.
// It only reads authorization state.
type Gate struct {
	auth    Authorizer
	allowed atomic.Pointer[[]string]
	blocked *prometheus.CounterVec
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithRegistry registers the blocked-actions counter with reg.
func WithRegistry(reg prometheus.Registerer) GateOption {
	return func(g *Gate) {
		g.blocked = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_gate_blocked_total",
			Help: "Chat lines and commands suppressed for unauthorized players",
		}, []string{"kind"})
		reg.MustRegister(g.blocked)
	}
}

// NewGate creates a gate. allowedCommands are prefixes usable while
// unauthorized.
func NewGate(auth Authorizer, allowedCommands []string, opts ...GateOption) *Gate {
	g := &Gate{auth: auth}
	for _, opt := range opts {
		opt(g)
	}
	g.SetAllowedCommands(allowedCommands)
	return g
}

// SetAllowedCommands replaces the allow-list.
func (g *Gate) SetAllowedCommands(prefixes []string) {
	normalized := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = normalizeCommand(p)
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	g.allowed.Store(&normalized)
}

// AllowedCommands returns the current allow-list.
func (g *Gate) AllowedCommands() []string {
	return append([]string(nil), *g.allowed.Load()...)
}

// AllowChat reports whether a chat line from sender may be delivered.
// Suppressed lines are dropped, not queued.
func (g *Gate) AllowChat(sender Sender) bool {
	if sender.Console || g.auth.IsAuthorized(sender.ID) {
		return true
	}
	g.count(KindChat)
	return false
}

// AllowCommand reports whether sender may run command. Unauthorized players
// are limited to commands starting with an allow-listed prefix.
func (g *Gate) AllowCommand(sender Sender, command string) bool {
	if sender.Console || g.auth.IsAuthorized(sender.ID) {
		return true
	}
	command = normalizeCommand(command)
	for _, prefix := range *g.allowed.Load() {
		if strings.HasPrefix(command, prefix) {
			return true
		}
	}
	g.count(KindCommand)
	return false
}

func (g *Gate) count(kind string) {
	if g.blocked != nil {
		g.blocked.WithLabelValues(kind).Inc()
	}
}

func normalizeCommand(s string) string {
	return strings.TrimPrefix(strings.TrimLeft(s, " \t"), "/")
}
