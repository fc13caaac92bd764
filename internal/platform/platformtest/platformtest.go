// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package platformtest provides in-memory fakes of the platform contracts.
package platformtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/holomush/gatekeeper/internal/platform"
)

// Title records a ShowTitle call.
type Title struct {
	Text string
	Stay time.Duration
}

// Target records everything sent to it.
type Target struct {
	mu       sync.Mutex
	messages []string
	titles   []Title
	cleared  int
}

// NewTarget creates an empty recording target.
func NewTarget() *Target {
	return &Target{}
}

// SendMessage implements platform.Target.
func (t *Target) SendMessage(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// ShowTitle implements platform.Target.
func (t *Target) ShowTitle(title string, stay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.titles = append(t.titles, Title{Text: title, Stay: stay})
}

// ClearTitle implements platform.Target.
func (t *Target) ClearTitle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleared++
}

// Messages returns a copy of the delivered messages.
func (t *Target) Messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.messages...)
}

// Titles returns a copy of the shown titles.
func (t *Target) Titles() []Title {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Title(nil), t.titles...)
}

// Cleared returns how many times ClearTitle was called.
func (t *Target) Cleared() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleared
}

// Scheduler queues tasks until Run is called.
type Scheduler struct {
	mu    sync.Mutex
	tasks []ScheduledTask
}

// ScheduledTask is a queued task with its requested delay.
type ScheduledTask struct {
	Delay time.Duration
	Task  func()
}

// NewScheduler creates a manual scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule implements platform.Scheduler.
func (s *Scheduler) Schedule(delay time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, ScheduledTask{Delay: delay, Task: task})
}

// Pending returns the queued tasks.
func (s *Scheduler) Pending() []ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ScheduledTask(nil), s.tasks...)
}

// Run fires and drains every queued task.
func (s *Scheduler) Run() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, st := range tasks {
		st.Task()
	}
}

// Kick records a Kick call.
type Kick struct {
	ID     uuid.UUID
	Reason string
}

// Proxy is an in-memory proxy.
type Proxy struct {
	mu         sync.Mutex
	servers    map[string]int
	order      []string
	targets    map[uuid.UUID]platform.Target
	online     map[uuid.UUID]bool
	connects   map[uuid.UUID][]string
	kicks      []Kick
	ConnectErr error

	// OnConnect, when set, runs at the start of every Connect.
	OnConnect func(id uuid.UUID)
}

// NewProxy creates a proxy with the given backends, all empty.
func NewProxy(servers ...string) *Proxy {
	p := &Proxy{
		servers:  make(map[string]int),
		targets:  make(map[uuid.UUID]platform.Target),
		online:   make(map[uuid.UUID]bool),
		connects: make(map[uuid.UUID][]string),
	}
	for _, s := range servers {
		p.AddServer(s, 0)
	}
	return p
}

// AddServer registers a backend with a player count.
func (p *Proxy) AddServer(name string, players int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.servers[name]; !ok {
		p.order = append(p.order, name)
	}
	p.servers[name] = players
}

// SetLoad changes the player count of a backend.
func (p *Proxy) SetLoad(name string, players int) {
	p.AddServer(name, players)
}

// Join marks an identity online with a target.
func (p *Proxy) Join(id uuid.UUID, target platform.Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets[id] = target
	p.online[id] = true
}

// Leave marks an identity offline.
func (p *Proxy) Leave(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.targets, id)
	delete(p.online, id)
}

// Target implements platform.Proxy.
func (p *Proxy) Target(id uuid.UUID) platform.Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targets[id]
}

// Servers implements platform.Proxy. Names are returned sorted.
func (p *Proxy) Servers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := append([]string(nil), p.order...)
	sort.Strings(names)
	return names
}

// PlayerCount implements platform.Proxy.
func (p *Proxy) PlayerCount(server string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.servers[server]
	return n, ok
}

// Connect implements platform.Proxy.
func (p *Proxy) Connect(_ context.Context, id uuid.UUID, server string) error {
	if p.OnConnect != nil {
		p.OnConnect(id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConnectErr != nil {
		return p.ConnectErr
	}
	p.connects[id] = append(p.connects[id], server)
	return nil
}

// Kick implements platform.Proxy.
func (p *Proxy) Kick(_ context.Context, id uuid.UUID, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kicks = append(p.kicks, Kick{ID: id, Reason: reason})
	delete(p.online, id)
}

// IsOnline implements platform.Proxy.
func (p *Proxy) IsOnline(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[id]
}

// Connects returns the servers an identity was sent to.
func (p *Proxy) Connects(id uuid.UUID) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.connects[id]...)
}

// Kicks returns every recorded kick.
func (p *Proxy) Kicks() []Kick {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Kick(nil), p.kicks...)
}

var (
	_ platform.Target    = (*Target)(nil)
	_ platform.Scheduler = (*Scheduler)(nil)
	_ platform.Proxy     = (*Proxy)(nil)
)
