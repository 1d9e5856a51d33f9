package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/reqguard/internal/connectivity"
	"github.com/bft-labs/reqguard/pkg/reqguard"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds CLI configuration for reqguard.
type Config struct {
	BaseURL string
	Timeout time.Duration

	Store      string
	StateDir   string
	RedisURL   string
	SQLitePath string

	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	MaxQueueSize   int
	MaxRequestAge  time.Duration
	ReplayDelay    time.Duration
	ReplayInterval time.Duration

	MaxRetries  int
	RetryDelays []time.Duration

	OfflineMode   string
	ProbeURL      string
	ProbeInterval time.Duration

	ListenAddr string

	CurrentUserPath string
	RefreshPath     string
	KeyringService  string

	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	lib := reqguard.DefaultConfig()
	return Config{
		Timeout:              lib.Timeout,
		Store:                StoreFile,
		CacheTTL:             lib.CacheTTL,
		CacheCleanupInterval: lib.CacheCleanupInterval,
		MaxQueueSize:         lib.MaxQueueSize,
		MaxRequestAge:        lib.MaxRequestAge,
		ReplayDelay:          lib.ReplayDelay,
		ReplayInterval:       30 * time.Second,
		MaxRetries:           lib.MaxRetries,
		RetryDelays:          lib.RetryDelays,
		OfflineMode:          lib.OfflineMode,
		ProbeInterval:        lib.ProbeInterval,
		ListenAddr:           "127.0.0.1:9470",
		CurrentUserPath:      lib.CurrentUserPath,
		RefreshPath:          lib.RefreshPath,
		LogLevel:             "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base-url %q must be an absolute URL", c.BaseURL)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")

	switch c.Store {
	case StoreFile:
		if c.StateDir == "" {
			c.StateDir = DefaultStateDir()
		}
		if c.StateDir == "" {
			return fmt.Errorf("state-dir is required for the file store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis-url is required for the redis store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			if dir := DefaultStateDir(); dir != "" {
				c.SQLitePath = filepath.Join(dir, "reqguard.db")
			} else {
				return fmt.Errorf("sqlite-path is required for the sqlite store")
			}
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want file, redis, sqlite or memory)", c.Store)
	}

	if _, err := connectivity.ParseMode(c.OfflineMode); err != nil {
		return err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("max queue size must be positive")
	}
	return nil
}

// ClientConfig maps the CLI configuration onto the library Config.
func (c *Config) ClientConfig() reqguard.Config {
	return reqguard.Config{
		BaseURL:              c.BaseURL,
		Timeout:              c.Timeout,
		CacheTTL:             c.CacheTTL,
		CacheCleanupInterval: c.CacheCleanupInterval,
		MaxQueueSize:         c.MaxQueueSize,
		MaxRequestAge:        c.MaxRequestAge,
		ReplayDelay:          c.ReplayDelay,
		MaxRetries:           c.MaxRetries,
		RetryDelays:          append([]time.Duration(nil), c.RetryDelays...),
		OfflineMode:          c.OfflineMode,
		ProbeURL:             c.ProbeURL,
		ProbeInterval:        c.ProbeInterval,
		CurrentUserPath:      c.CurrentUserPath,
		RefreshPath:          c.RefreshPath,
	}
}

// DefaultStateDir returns ~/.reqguard/state, or "" without a home directory.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".reqguard", "state")
	}
	return ""
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setDurations parses a list of durations; an empty list leaves dst alone.
func (s *configSetter) setDurations(flag string, values []string, dst *[]time.Duration) error {
	if len(values) == 0 || s.changed[flag] {
		return nil
	}
	out := make([]time.Duration, 0, len(values))
	for _, v := range values {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", flag, err)
		}
		out = append(out, d)
	}
	*dst = out
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
