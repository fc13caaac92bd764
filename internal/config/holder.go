// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"sync"
	"sync/atomic"

	"github.com/spf13/pflag"
)

// Validator checks a loaded configuration before it becomes active.
type Validator func(*Config) error

// Holder keeps the active configuration. Readers never observe a
// configuration that failed validation.
type Holder struct {
	path     string
	flags    *pflag.FlagSet
	validate Validator

	mu      sync.Mutex // serializes Reload
	current atomic.Pointer[Config]
}

// NewHolder loads and validates the initial configuration.
func NewHolder(path string, flags *pflag.FlagSet, validate Validator) (*Holder, error) {
	h := &Holder{path: path, flags: flags, validate: validate}
	if _, err := h.Reload(); err != nil {
		return nil, err
	}
	return h, nil
}

// Get returns the active configuration. Callers must not modify it.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// Path returns the configuration file path.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads and validates the configuration. On failure the previous
// configuration stays active.
func (h *Holder) Reload() (*Config, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := Load(h.path, h.flags)
	if err != nil {
		return nil, err
	}
	if h.validate != nil {
		if err := h.validate(cfg); err != nil {
			return nil, err
		}
	}
	h.current.Store(cfg)
	return cfg, nil
}
