// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads, validates and hot-swaps the gatekeeper configuration.
package config

import (
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/crypto"
	"github.com/holomush/gatekeeper/internal/premium"
	"github.com/holomush/gatekeeper/internal/ratelimit"
	"github.com/holomush/gatekeeper/internal/routing"
	"github.com/holomush/gatekeeper/internal/session"
)

// CodeInvalid marks a configuration that failed validation.
const CodeInvalid = "CONFIG_INVALID"

// Config is the gatekeeper configuration.
type Config struct {
	Limbo           []string `koanf:"limbo" json:"limbo" jsonschema:"required,minItems=1,description=Staging servers for players who have not authenticated"`
	PassThrough     []string `koanf:"pass-through" json:"pass-through" jsonschema:"required,minItems=1,description=Lobby servers for authenticated players; glob patterns allowed"`
	AllowedCommands []string `koanf:"allowed-commands-while-unauthorized" json:"allowed-commands-while-unauthorized,omitempty" jsonschema:"description=Command prefixes usable before authenticating"`
	UseTitles       bool     `koanf:"use-titles" json:"use-titles,omitempty" jsonschema:"description=Show title prompts in addition to chat prompts"`

	DefaultCryptoProvider string        `koanf:"default-crypto-provider" json:"default-crypto-provider,omitempty" jsonschema:"description=Hash algorithm tag for new passwords"`
	AutoRegisterPremium   bool          `koanf:"auto-register-premium" json:"auto-register-premium,omitempty" jsonschema:"description=Admit unknown names with a premium account in trusted mode"`
	PromptDelay           time.Duration `koanf:"prompt-delay" json:"prompt-delay,omitempty" jsonschema:"description=Delay before the first login prompt"`
	MinPasswordLength     int           `koanf:"min-password-length" json:"min-password-length,omitempty" jsonschema:"minimum=1"`
	Messages              string        `koanf:"messages" json:"messages,omitempty" jsonschema:"description=Path to a messages override file"`

	Premium  Premium  `koanf:"premium" json:"premium,omitempty"`
	Commands Commands `koanf:"commands" json:"commands,omitempty"`
	Database Database `koanf:"database" json:"database,omitempty"`
	Redis    Redis    `koanf:"redis" json:"redis,omitempty"`
	Kafka    Kafka    `koanf:"kafka" json:"kafka,omitempty"`

	Servers []string `koanf:"servers" json:"servers,omitempty" jsonschema:"description=Backend names known to the proxy when running without one attached"`

	MetricsAddr string `koanf:"metrics-addr" json:"metrics-addr,omitempty" jsonschema:"description=Metrics and health listen address; empty disables"`
	LogFormat   string `koanf:"log-format" json:"log-format,omitempty" jsonschema:"enum=json,enum=text"`
	LogLevel    string `koanf:"log-level" json:"log-level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Premium configures identity resolution.
type Premium struct {
	APIURL   string        `koanf:"api-url" json:"api-url,omitempty" jsonschema:"format=uri"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout,omitempty"`
	Burst    int           `koanf:"burst" json:"burst,omitempty" jsonschema:"minimum=1,description=Lookups a caller may make back to back"`
	Rate     float64       `koanf:"rate" json:"rate,omitempty" jsonschema:"exclusiveMinimum=0,description=Lookup tokens refilled per second"`
	CacheTTL time.Duration `koanf:"cache-ttl" json:"cache-ttl,omitempty"`
}

// Commands configures the command throttle.
type Commands struct {
	Burst int     `koanf:"burst" json:"burst,omitempty" jsonschema:"minimum=1"`
	Rate  float64 `koanf:"rate" json:"rate,omitempty" jsonschema:"exclusiveMinimum=0"`
}

// Database configures user storage. An empty URL selects in-memory storage.
type Database struct {
	URL string `koanf:"url" json:"url,omitempty"`
}

// Redis configures the shared identity cache. An empty URL selects an
// in-process cache.
type Redis struct {
	URL string `koanf:"url" json:"url,omitempty"`
}

// Kafka configures event export. No brokers disables export.
type Kafka struct {
	Brokers []string `koanf:"brokers" json:"brokers,omitempty"`
	Topic   string   `koanf:"topic" json:"topic,omitempty"`
}

// Default returns the built-in configuration. Limbo and pass-through are
// left empty; every deployment must name its servers.
func Default() *Config {
	return &Config{
		AllowedCommands:       []string{"login", "register", "l ", "reg "},
		DefaultCryptoProvider: crypto.TagArgon2id,
		PromptDelay:           session.DefaultPromptDelay,
		MinPasswordLength:     4,
		Premium: Premium{
			APIURL:   premium.DefaultAPIURL,
			Timeout:  premium.DefaultTimeout,
			Burst:    ratelimit.DefaultBurst,
			Rate:     ratelimit.DefaultRate,
			CacheTTL: premium.DefaultCacheTTL,
		},
		Commands: Commands{
			Burst: 5,
			Rate:  1,
		},
		Kafka: Kafka{
			Topic: "gatekeeper.events",
		},
		MetricsAddr: "127.0.0.1:9100",
		LogFormat:   "json",
		LogLevel:    "info",
	}
}

// Validate checks the configuration against the servers registered with the
// proxy and the available hash providers.
func (c *Config) Validate(servers, cryptoTags []string) error {
	if len(c.Limbo) == 0 {
		return invalid("limbo", "no limbo servers defined")
	}
	if len(c.PassThrough) == 0 {
		return invalid("pass-through", "no pass-through servers defined")
	}

	limbo, err := routing.Compile(c.Limbo)
	if err != nil {
		return err
	}
	if missing := limbo.Unmatched(servers); len(missing) > 0 {
		return oops.Code(CodeInvalid).
			With("option", "limbo").
			With("servers", missing).
			Errorf("limbo server %s not configured", missing[0])
	}

	passThrough, err := routing.Compile(c.PassThrough)
	if err != nil {
		return err
	}
	if missing := passThrough.Unmatched(servers); len(missing) > 0 {
		return oops.Code(CodeInvalid).
			With("option", "pass-through").
			With("servers", missing).
			Errorf("pass-through server %s not configured", missing[0])
	}

	if !slices.Contains(cryptoTags, c.DefaultCryptoProvider) {
		return oops.Code(CodeInvalid).
			With("option", "default-crypto-provider").
			With("value", c.DefaultCryptoProvider).
			With("available", cryptoTags).
			Errorf("unknown crypto provider %q", c.DefaultCryptoProvider)
	}

	if c.PromptDelay < 0 {
		return invalid("prompt-delay", "prompt delay must not be negative")
	}
	if c.MinPasswordLength < 1 {
		return invalid("min-password-length", "minimum password length must be positive")
	}
	if c.Premium.Burst < 1 || c.Premium.Rate <= 0 {
		return invalid("premium", "premium burst and rate must be positive")
	}
	if c.Commands.Burst < 1 || c.Commands.Rate <= 0 {
		return invalid("commands", "command burst and rate must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return invalid("kafka.topic", "a topic is required when brokers are set")
	}
	return nil
}

func invalid(option, msg string) error {
	return oops.Code(CodeInvalid).With("option", option).Errorf("%s", msg)
}
