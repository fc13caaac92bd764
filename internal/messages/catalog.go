// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package messages holds the player-facing text catalog.
package messages

import (
	_ "embed"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
)

//go:embed defaults.yml
var defaults []byte

// CodeInvalid marks an unreadable or malformed messages file.
const CodeInvalid = "MESSAGES_INVALID"

// Catalog maps message keys to text. Lookups are safe during Reload.
type Catalog struct {
	path    string
	logger  *slog.Logger
	entries atomic.Pointer[map[string]string]
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// New loads the built-in catalog, overridden by the YAML file at path when
// path is non-empty and exists.
func New(path string, opts ...Option) (*Catalog, error) {
	c := &Catalog{path: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the override file. On failure the current catalog stays
// active and the error carries CodeInvalid.
func (c *Catalog) Reload() error {
	entries, err := load(c.path)
	if err != nil {
		return err
	}
	c.entries.Store(&entries)
	c.logger.Debug("messages loaded", "path", c.path, "count", len(entries))
	return nil
}

// Get returns the message for key with placeholders filled. replacements
// are name/value pairs; "name" replaces "%name%". An unknown key yields
// the key itself.
func (c *Catalog) Get(key string, replacements ...string) string {
	msg, ok := (*c.entries.Load())[key]
	if !ok {
		c.logger.Warn("missing message", "key", key)
		return key
	}
	if len(replacements) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(replacements))
	for i := 0; i+1 < len(replacements); i += 2 {
		pairs = append(pairs, "%"+replacements[i]+"%", replacements[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// Has reports whether key exists.
func (c *Catalog) Has(key string) bool {
	_, ok := (*c.entries.Load())[key]
	return ok
}

// Len returns the number of loaded messages.
func (c *Catalog) Len() int {
	return len(*c.entries.Load())
}

// embedded adapts the built-in defaults to a koanf provider.
type embedded []byte

func (e embedded) ReadBytes() ([]byte, error) { return e, nil }

func (e embedded) Read() (map[string]any, error) {
	return nil, errors.New("embedded provider requires a parser")
}

func load(path string) (map[string]string, error) {
	k := koanf.New("::")
	if err := k.Load(embedded(defaults), yaml.Parser()); err != nil {
		return nil, oops.Code(CodeInvalid).With("path", "defaults.yml").Wrap(err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code(CodeInvalid).With("path", path).Wrap(err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code(CodeInvalid).With("path", path).Wrap(err)
		}
	}

	entries := make(map[string]string, len(k.Keys()))
	for key, value := range k.All() {
		s, ok := value.(string)
		if !ok {
			return nil, oops.Code(CodeInvalid).
				With("path", path).
				With("key", key).
				Errorf("message %s must be a string", key)
		}
		entries[key] = s
	}
	return entries, nil
}
