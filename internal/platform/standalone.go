// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Standalone is the Proxy used when gatekeeper runs without a proxy
// attached, as the administration console does. It knows the configured
// backend names, but no player is ever online and nobody can be moved.
type Standalone struct {
	servers []string
	logger  *slog.Logger
}

// NewStandalone creates a Standalone proxy with the given backends.
func NewStandalone(servers []string, logger *slog.Logger) *Standalone {
	if logger == nil {
		logger = slog.Default()
	}
	return &Standalone{servers: slices.Clone(servers), logger: logger}
}

// Target implements Proxy. There are no connections.
func (s *Standalone) Target(uuid.UUID) Target { return nil }

// Servers implements Proxy.
func (s *Standalone) Servers() []string { return slices.Clone(s.servers) }

// PlayerCount implements Proxy. Known backends are always empty.
func (s *Standalone) PlayerCount(server string) (int, bool) {
	return 0, slices.Contains(s.servers, server)
}

// Connect implements Proxy. It always fails.
func (s *Standalone) Connect(_ context.Context, id uuid.UUID, server string) error {
	return oops.Code("PLATFORM_NOT_ATTACHED").
		With("uuid", id.String()).
		With("server", server).
		Errorf("no proxy attached")
}

// Kick implements Proxy by logging the request.
func (s *Standalone) Kick(ctx context.Context, id uuid.UUID, reason string) {
	s.logger.WarnContext(ctx, "kick requested without a proxy attached", "uuid", id.String(), "reason", reason)
}

// IsOnline implements Proxy. Nobody is online.
func (s *Standalone) IsOnline(uuid.UUID) bool { return false }

// WriterTarget prints messages for a console operator. It is safe for
// concurrent use.
type WriterTarget struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterTarget creates a target that prints to w.
func NewWriterTarget(w io.Writer) *WriterTarget {
	return &WriterTarget{w: w}
}

// SendMessage implements Target.
func (t *WriterTarget) SendMessage(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.w, msg)
}

// ShowTitle implements Target.
func (t *WriterTarget) ShowTitle(title string, _ time.Duration) {
	t.SendMessage(title)
}

// ClearTitle implements Target.
func (t *WriterTarget) ClearTitle() {}

var (
	_ Proxy  = (*Standalone)(nil)
	_ Target = (*WriterTarget)(nil)
)
