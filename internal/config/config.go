// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

// Package config loads pauth settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/pauth/pauth/internal/auth"
	"github.com/pauth/pauth/internal/logging"
)

// EnvPrefix selects the environment variables read into the config.
// A double underscore separates nesting levels: PAUTH_DATABASE__MAX_CONNS
// sets database.max_conns.
const EnvPrefix = "PAUTH_"

// Config is the complete pauth configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Hasher   HasherConfig   `koanf:"hasher"`
	Reset    ResetConfig    `koanf:"reset"`
	Log      LogConfig      `koanf:"log"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL            string        `koanf:"url" validate:"required"`
	MaxConns       int32         `koanf:"max_conns" validate:"gte=1"`
	MinConns       int32         `koanf:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	AcquireTimeout time.Duration `koanf:"acquire_timeout" validate:"gt=0"`
}

// HasherConfig holds the argon2id cost parameters for new hashes.
type HasherConfig struct {
	MemoryKiB  uint32 `koanf:"memory_kib" validate:"gte=8"`
	Iterations uint32 `koanf:"iterations" validate:"gte=1"`
	Threads    uint8  `koanf:"threads" validate:"gte=1"`
}

// ResetConfig configures password reset tokens.
type ResetConfig struct {
	SingleUse bool `koanf:"single_use"`
	// DefaultTTL applies when a reset is requested without an explicit
	// expiry. Zero issues tokens that never expire.
	DefaultTTL time.Duration `koanf:"default_ttl" validate:"gte=0"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Format string `koanf:"format" validate:"oneof=json text"`
	Level  string `koanf:"level"`
}

// Argon2Params converts the hasher settings for auth.NewArgon2idHasherWithParams.
func (h HasherConfig) Argon2Params() auth.Argon2Params {
	return auth.Argon2Params{
		Iterations: h.Iterations,
		MemoryKiB:  h.MemoryKiB,
		Threads:    h.Threads,
	}
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	p := auth.DefaultArgon2Params()
	return map[string]any{
		"database.url":             "",
		"database.max_conns":       int32(10),
		"database.min_conns":       int32(0),
		"database.acquire_timeout": 5 * time.Second,
		"hasher.memory_kib":        p.MemoryKiB,
		"hasher.iterations":        p.Iterations,
		"hasher.threads":           p.Threads,
		"reset.single_use":         true,
		"reset.default_ttl":        time.Duration(0),
		"log.format":               "json",
		"log.level":                "info",
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"database-url": "database.url",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

var validate = validator.New()

// Load builds the configuration. path may be empty to skip the YAML file.
// flags may be nil; only flags the user changed override other sources.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "read config file").
				With("path", path).
				Wrap(err)
		}
	}

	// DATABASE_URL is the conventional variable; PAUTH_DATABASE__URL wins over it.
	if url, ok := os.LookupEnv("DATABASE_URL"); ok && url != "" {
		if err := k.Set("database.url", url); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", "database.url").Wrap(err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "read environment").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "read flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode config").Wrap(err)
	}
	return &cfg, nil
}

// envKey turns PAUTH_DATABASE__MAX_CONNS into database.max_conns.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", "."), value
}

// flagValue maps changed flags onto config keys and skips the rest.
func flagValue(f *pflag.Flag) (string, any) {
	key, ok := flagKeys[f.Name]
	if !ok || !f.Changed {
		return "", nil
	}
	return key, f.Value.String()
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if _, lerr := logging.ParseLevel(c.Log.Level); lerr != nil {
		err = errors.Join(err, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}
