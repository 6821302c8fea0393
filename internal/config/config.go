// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config builds the process configuration once at startup.
//
// Precedence, highest first: process environment (including values loaded
// from a .env file, which never override the environment), the XDG
// config.json for non-secret defaults, the OS keychain for secrets, then
// built-in defaults. The resulting Config is a value; nothing reads the
// environment after Load returns.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "sqlgate/server/internal/errors"
	"sqlgate/server/internal/dsn"
	"sqlgate/server/internal/keychain"
	"sqlgate/server/internal/policy"
	"sqlgate/server/internal/xdg"
)

// Defaults.
const (
	DefaultListenAddr   = ":8080"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultQueryTimeout = 30 * time.Second
	DefaultRateLimit    = 10.0
	DefaultRateBurst    = 20
)

// Where the DSN came from.
const (
	SourceDatabaseURL = "DATABASE_URL"
	SourceDiscrete    = "DB_*"
	SourceKeychain    = "keychain"
)

const missingHint = "Set DATABASE_URL or provide DB_* vars, and both API keys (or save them with 'sqlgate connect')."

// Config is the immutable process configuration.
type Config struct {
	DatabaseURL  string
	DSNSource    string
	ListenAddr   string
	LogLevel     string
	LogFormat    string
	QueryTimeout time.Duration
	RateLimit    RateLimit
	CORSOrigins  []string
	Keys         Keys
}

// RateLimit is the per-client token bucket applied to the query endpoints.
// A zero RequestsPerSecond disables limiting.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// Keys holds the bearer secret of each role.
type Keys struct {
	User  string
	Admin string
}

// For returns the secret of role, or "" for an unknown role.
func (k Keys) For(role policy.Role) string {
	switch role {
	case policy.User:
		return k.User
	case policy.Admin:
		return k.Admin
	}
	return ""
}

// Secrets returns every value that must never be logged verbatim.
func (c Config) Secrets() []string {
	out := []string{c.Keys.User, c.Keys.Admin}
	if info, err := dsn.Parse(c.DatabaseURL); err == nil && info.Password != "" {
		out = append(out, info.Password)
	}
	return out
}

// File is the on-disk shape of config.json. Secrets are never read from it.
type File struct {
	ListenAddr   string   `json:"listen_addr,omitempty"`
	LogLevel     string   `json:"log_level,omitempty"`
	LogFormat    string   `json:"log_format,omitempty"`
	QueryTimeout string   `json:"query_timeout,omitempty"`
	RateLimit    *float64 `json:"rate_limit_rps,omitempty"`
	RateBurst    *int     `json:"rate_limit_burst,omitempty"`
	CORSOrigins  []string `json:"cors_origins,omitempty"`
}

// SecretStore is the keychain fallback for secrets.
type SecretStore interface {
	Get(key string) (string, error)
}

// Source describes where LoadFrom reads settings.
type Source struct {
	// Lookup reads one environment variable.
	Lookup func(key string) (string, bool)
	// File is the path of config.json; empty skips it.
	File string
	// Secrets is consulted for the DSN and API keys the environment lacks.
	// May be nil.
	Secrets SecretStore
}

// Load reads envFile (if present), then builds the Config from the process
// environment, the XDG config file and the OS keychain.
func Load(envFile string) (Config, error) {
	src, err := DefaultSource(envFile)
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(src)
}

// DefaultSource loads envFile into the environment and returns the Source
// backed by the process environment, the XDG config file and the keychain.
func DefaultSource(envFile string) (Source, error) {
	if envFile != "" {
		if err := LoadDotEnv(envFile); err != nil {
			return Source{}, err
		}
	}

	src := Source{Lookup: os.LookupEnv}
	if p, err := xdg.ConfigFile(); err == nil {
		src.File = p
	}
	if m, err := keychain.GetManager(); err == nil {
		src.Secrets = m
	}
	return src, nil
}

// Database is a resolved connection target.
type Database struct {
	URL    string
	Source string
}

// DatabaseFrom resolves only the database settings, for commands that need
// a connection but no API keys.
func DatabaseFrom(src Source) (Database, error) {
	url, source, missing, err := resolveDatabase(src.env, src.Secrets)
	if err != nil {
		return Database{}, err
	}
	if len(missing) > 0 {
		return Database{}, &apperrors.Configuration{Missing: missing, Hint: "Set DATABASE_URL or provide DB_* vars (or run 'sqlgate connect')."}
	}
	return Database{URL: url, Source: source}, nil
}

// APIKey resolves the secret of one role from the environment, then the
// keychain.
func APIKey(src Source, role policy.Role) (string, error) {
	name, err := keychain.APIKeyName(role)
	if err != nil {
		return "", err
	}
	envName := strings.ToUpper(string(role)) + "_API_KEY"
	if v := firstNonEmpty(src.env(envName), secret(src.Secrets, name)); v != "" {
		return v, nil
	}
	return "", &apperrors.Configuration{Missing: []string{envName}, Hint: "Set it in the environment or save it with 'sqlgate connect --api-keys'."}
}

func (src Source) env(key string) string {
	if src.Lookup == nil {
		return ""
	}
	v, _ := src.Lookup(key)
	return strings.TrimSpace(v)
}

// LoadFrom builds the Config from src. Every missing required setting is
// reported in one *errors.Configuration.
func LoadFrom(src Source) (Config, error) {
	file, err := ReadFile(src.File)
	if err != nil {
		return Config{}, err
	}
	env := src.env

	cfg := Config{
		ListenAddr: firstNonEmpty(env("LISTEN_ADDR"), file.ListenAddr, DefaultListenAddr),
		LogLevel:   firstNonEmpty(env("LOG_LEVEL"), file.LogLevel, DefaultLogLevel),
		LogFormat:  firstNonEmpty(env("LOG_FORMAT"), file.LogFormat, DefaultLogFormat),
		RateLimit:  RateLimit{RequestsPerSecond: DefaultRateLimit, Burst: DefaultRateBurst},
	}

	timeout := firstNonEmpty(env("QUERY_TIMEOUT"), file.QueryTimeout)
	cfg.QueryTimeout = DefaultQueryTimeout
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid QUERY_TIMEOUT %q: want a duration such as 30s", timeout)
		}
		cfg.QueryTimeout = d
	}

	if file.RateLimit != nil {
		cfg.RateLimit.RequestsPerSecond = *file.RateLimit
	}
	if file.RateBurst != nil {
		cfg.RateLimit.Burst = *file.RateBurst
	}
	if v := env("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
		cfg.RateLimit.RequestsPerSecond = f
	}
	if v := env("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_BURST %q", v)
		}
		cfg.RateLimit.Burst = n
	}

	cfg.CORSOrigins = file.CORSOrigins
	if v := env("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	var missing []string

	url, source, dbMissing, err := resolveDatabase(env, src.Secrets)
	if err != nil {
		return Config{}, err
	}
	missing = append(missing, dbMissing...)
	cfg.DatabaseURL, cfg.DSNSource = url, source

	cfg.Keys.User = firstNonEmpty(env("USER_API_KEY"), secret(src.Secrets, keychain.KeyUserAPIKey))
	if cfg.Keys.User == "" {
		missing = append(missing, "USER_API_KEY")
	}
	cfg.Keys.Admin = firstNonEmpty(env("ADMIN_API_KEY"), secret(src.Secrets, keychain.KeyAdminAPIKey))
	if cfg.Keys.Admin == "" {
		missing = append(missing, "ADMIN_API_KEY")
	}

	if len(missing) > 0 {
		return Config{}, &apperrors.Configuration{Missing: missing, Hint: missingHint}
	}
	if cfg.Keys.User == cfg.Keys.Admin {
		return Config{}, apperrors.New(apperrors.ConfigurationError, "USER_API_KEY and ADMIN_API_KEY must differ")
	}
	return cfg, nil
}

// resolveDatabase applies DATABASE_URL > DB_* > keychain. It returns the
// names of missing settings rather than failing on them.
func resolveDatabase(env func(string) string, secrets SecretStore) (url, source string, missing []string, err error) {
	sslmode := firstNonEmpty(env("DB_SSLMODE"), dsn.DefaultSSLMode)

	if raw := env("DATABASE_URL"); raw != "" {
		url, err := dsn.Resolve(raw, sslmode)
		if err != nil {
			return "", "", nil, fmt.Errorf("DATABASE_URL: %w", err)
		}
		return url, SourceDatabaseURL, nil, nil
	}

	fields := dsn.Fields{
		Host:     env("DB_HOST"),
		Port:     env("DB_PORT"),
		Database: env("DB_NAME"),
		User:     env("DB_USER"),
		Password: env("DB_PASSWORD"),
		SSLMode:  sslmode,
	}
	anySet := fields.Host != "" || fields.Database != "" || fields.User != "" || fields.Password != ""

	if !anySet {
		if saved := secret(secrets, keychain.KeyDBDSN); saved != "" {
			url, err := dsn.Resolve(saved, sslmode)
			if err != nil {
				return "", "", nil, fmt.Errorf("keychain DSN: %w", err)
			}
			return url, SourceKeychain, nil, nil
		}
	}

	for _, f := range []struct{ name, val string }{
		{"DB_HOST", fields.Host},
		{"DB_NAME", fields.Database},
		{"DB_USER", fields.User},
		{"DB_PASSWORD", fields.Password},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return "", "", missing, nil
	}

	url, err = dsn.Build(fields)
	if err != nil {
		return "", "", nil, fmt.Errorf("DB_* settings: %w", err)
	}
	return url, SourceDiscrete, nil, nil
}

// ReadFile reads config.json at path. A missing file, or an empty path,
// yields the zero File.
func ReadFile(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// SaveFile writes config.json with 0600 permissions into the XDG config
// directory.
func SaveFile(f File) (string, error) {
	if _, err := xdg.EnsureConfigDir(); err != nil {
		return "", err
	}
	p, err := xdg.ConfigFile()
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", err
	}
	return p, os.WriteFile(p, b, 0o600)
}

func secret(s SecretStore, key string) string {
	if s == nil {
		return ""
	}
	v, err := s.Get(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
