// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/warden/internal/credstore"
	"github.com/jeranaias/warden/internal/idle"
	"github.com/jeranaias/warden/internal/logging"
	"github.com/jeranaias/warden/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete warden configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Idle    IdleConfig    `toml:"idle"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ServerConfig points the client at the API.
type ServerConfig struct {
	BaseURL          string `toml:"base_url"`
	RequestTimeoutMS int64  `toml:"request_timeout_ms"`
	RefreshTimeoutMS int64  `toml:"refresh_timeout_ms"`
	LogoutTimeoutMS  int64  `toml:"logout_timeout_ms"`
}

// RequestTimeout returns the per-request timeout.
func (s ServerConfig) RequestTimeout() time.Duration { return ms(s.RequestTimeoutMS) }

// RefreshTimeout returns the bound on one refresh call.
func (s ServerConfig) RefreshTimeout() time.Duration { return ms(s.RefreshTimeoutMS) }

// LogoutTimeout returns the bound on the background logout call.
func (s ServerConfig) LogoutTimeout() time.Duration { return ms(s.LogoutTimeoutMS) }

// IdleConfig holds the idle thresholds, all measured from the last reset.
type IdleConfig struct {
	WarningAfterMS     int64 `toml:"warning_after_ms"`
	ExpiringAfterMS    int64 `toml:"expiring_after_ms"`
	LogoutAfterMS      int64 `toml:"logout_after_ms"`
	ActivityThrottleMS int64 `toml:"activity_throttle_ms"`
}

// Monitor converts the thresholds to an idle.Config.
func (c IdleConfig) Monitor() idle.Config {
	return idle.Config{
		WarningAfter:     ms(c.WarningAfterMS),
		ExpiringAfter:    ms(c.ExpiringAfterMS),
		LogoutAfter:      ms(c.LogoutAfterMS),
		ActivityThrottle: ms(c.ActivityThrottleMS),
	}
}

// StorageConfig selects where credentials are kept.
type StorageConfig struct {
	// Backend is one of memory, file, sqlite.
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	// PassphraseEnv names the environment variable holding the passphrase
	// that seals the file backend. Unset variable means a plain file.
	PassphraseEnv string `toml:"passphrase_env"`
}

// Passphrase reads the sealing passphrase from the environment.
func (s StorageConfig) Passphrase() string {
	if s.PassphraseEnv == "" {
		return ""
	}
	return os.Getenv(s.PassphraseEnv)
}

// StoreOptions converts the section to credstore.Options.
func (s StorageConfig) StoreOptions() credstore.Options {
	return credstore.Options{
		Backend:    s.Backend,
		Path:       s.Path,
		Passphrase: s.Passphrase(),
	}
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// File receives log output while the TUI owns the terminal.
	File string `toml:"file"`
}

// MetricsConfig configures the Prometheus endpoint. Empty ListenAddr
// disables it.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values. File paths are
// placed under ConfigDir when the home directory is known.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".warden"
	}
	return &Config{
		Server: ServerConfig{
			BaseURL:          "http://localhost:8080/api",
			RequestTimeoutMS: 15_000,
			RefreshTimeoutMS: 10_000,
			LogoutTimeoutMS:  5_000,
		},
		Idle: IdleConfig{
			WarningAfterMS:     2 * 60_000,
			ExpiringAfterMS:    3 * 60_000,
			LogoutAfterMS:      5 * 60_000,
			ActivityThrottleMS: 1_000,
		},
		Storage: StorageConfig{
			Backend:       credstore.BackendFile,
			Path:          filepath.Join(dir, "credentials.json"),
			PassphraseEnv: "WARDEN_PASSPHRASE",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatPretty,
			File:   filepath.Join(dir, "warden.log"),
		},
	}
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	// Server
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = defaults.Server.BaseURL
	}
	if cfg.Server.RequestTimeoutMS == 0 {
		cfg.Server.RequestTimeoutMS = defaults.Server.RequestTimeoutMS
	}
	if cfg.Server.RefreshTimeoutMS == 0 {
		cfg.Server.RefreshTimeoutMS = defaults.Server.RefreshTimeoutMS
	}
	if cfg.Server.LogoutTimeoutMS == 0 {
		cfg.Server.LogoutTimeoutMS = defaults.Server.LogoutTimeoutMS
	}

	// Idle
	if cfg.Idle.WarningAfterMS == 0 {
		cfg.Idle.WarningAfterMS = defaults.Idle.WarningAfterMS
	}
	if cfg.Idle.ExpiringAfterMS == 0 {
		cfg.Idle.ExpiringAfterMS = defaults.Idle.ExpiringAfterMS
	}
	if cfg.Idle.LogoutAfterMS == 0 {
		cfg.Idle.LogoutAfterMS = defaults.Idle.LogoutAfterMS
	}
	if cfg.Idle.ActivityThrottleMS == 0 {
		cfg.Idle.ActivityThrottleMS = defaults.Idle.ActivityThrottleMS
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Storage.Path == "" && cfg.Storage.Backend != credstore.BackendMemory {
		cfg.Storage.Path = defaults.Storage.Path
		if cfg.Storage.Backend == credstore.BackendSQLite {
			cfg.Storage.Path = strings.TrimSuffix(cfg.Storage.Path, ".json") + ".db"
		}
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.Log.File == "" {
		cfg.Log.File = defaults.Log.File
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the warden configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".warden"), nil
}

// ConfigPath returns the path to the default TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens the config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads path, or the default location when path is empty. A missing
// file yields defaults. Environment overrides are applied last, then the
// result is validated.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg. Unknown keys are an error so typos
// do not silently fall back to defaults.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Save writes cfg to path, or the default location when path is empty.
// The file is written atomically with 0600 permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	var buf bytes.Buffer
	buf.WriteString("# warden configuration file\n")
	buf.WriteString("# Generated by warden - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Host == "" {
		add("server.base_url", "invalid URL '%s'", c.Server.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.base_url", "scheme must be http or https, got '%s'", u.Scheme)
	}
	for field, v := range map[string]int64{
		"server.request_timeout_ms": c.Server.RequestTimeoutMS,
		"server.refresh_timeout_ms": c.Server.RefreshTimeoutMS,
		"server.logout_timeout_ms":  c.Server.LogoutTimeoutMS,
	} {
		if v < 0 {
			add(field, "must not be negative, got %d", v)
		}
	}

	// Idle
	if err := c.Idle.Monitor().Validate(); err != nil {
		add("idle", "%v", err)
	}

	// Storage
	switch c.Storage.Backend {
	case credstore.BackendMemory:
	case credstore.BackendFile, credstore.BackendSQLite:
		if c.Storage.Path == "" {
			add("storage.path", "required for backend '%s'", c.Storage.Backend)
		}
	default:
		add("storage.backend", "invalid backend '%s', must be one of: memory, file, sqlite", c.Storage.Backend)
	}

	// Log
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case logging.FormatPretty, logging.FormatText, logging.FormatJSON:
	default:
		add("log.format", "invalid format '%s', must be one of: pretty, text, json", c.Log.Format)
	}

	if len(errs) > 0 {
		// Stable output regardless of map iteration order.
		slices.SortStableFunc(errs, func(a, b ValidationError) int {
			return strings.Compare(a.Field, b.Field)
		})
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - WARDEN_BASE_URL: overrides server.base_url
//   - WARDEN_STORAGE_BACKEND: overrides storage.backend
//   - WARDEN_STORAGE_PATH: overrides storage.path
//   - WARDEN_LOG_LEVEL: overrides log.level
//   - WARDEN_LOG_FORMAT: overrides log.format
//   - WARDEN_METRICS_ADDR: overrides metrics.listen_addr
//   - WARDEN_IDLE_LOGOUT_MS: overrides idle.logout_after_ms
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("WARDEN_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("WARDEN_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("WARDEN_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("WARDEN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("WARDEN_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("WARDEN_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v := os.Getenv("WARDEN_IDLE_LOGOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Idle.LogoutAfterMS = n
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by its TOML key path, e.g. "idle.logout_after_ms".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by its TOML key path. String values are converted to
// the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return reflect.Value{}, fmt.Errorf("invalid key '%s', want section.name", key)
	}
	section, ok := fieldByTag(reflect.ValueOf(c).Elem(), parts[0])
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown section: %s", parts[0])
	}
	field, ok := fieldByTag(section, parts[1])
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown field: %s", key)
	}
	return field, nil
}

func fieldByTag(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := range t.NumField() {
		if t.Field(i).Tag.Get("toml") == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an arbitrary value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && field.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns every configuration key in dot notation.
func GetAllKeys() []string {
	var keys []string
	root := reflect.TypeOf(Config{})
	for i := range root.NumField() {
		section := root.Field(i)
		prefix := section.Tag.Get("toml")
		for j := range section.Type.NumField() {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
