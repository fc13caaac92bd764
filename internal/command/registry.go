// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Registry maps command names and aliases to entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	names   map[string]string // name or alias -> canonical name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		names:   make(map[string]string),
	}
}

// Register adds entry. A name or alias already in use is rejected.
func (r *Registry) Register(entry Entry) error {
	if entry.Name == "" || entry.Handler == nil {
		return oops.Code(CodeInvalidEntry).With("command", entry.Name).Errorf("command needs a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := append([]string{entry.Name}, entry.Aliases...)
	for _, k := range keys {
		k = strings.ToLower(k)
		if owner, ok := r.names[k]; ok {
			return oops.Code(CodeConflict).
				With("command", entry.Name).
				With("name", k).
				With("owner", owner).
				Errorf("%s is already registered by %s", k, owner)
		}
	}
	for _, k := range keys {
		r.names[strings.ToLower(k)] = entry.Name
	}
	r.entries[entry.Name] = entry
	return nil
}

// Get resolves a name or alias.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.names[strings.ToLower(name)]
	if !ok {
		return Entry{}, false
	}
	return r.entries[canonical], true
}

// All returns every entry sorted by name.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every registered name and alias, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
