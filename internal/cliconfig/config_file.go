package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	BaseURL              string   `toml:"base_url"`
	Timeout              string   `toml:"timeout"`
	Store                string   `toml:"store"`
	StateDir             string   `toml:"state_dir"`
	RedisURL             string   `toml:"redis_url"`
	SQLitePath           string   `toml:"sqlite_path"`
	CacheTTL             string   `toml:"cache_ttl"`
	CacheCleanupInterval string   `toml:"cache_cleanup_interval"`
	MaxQueueSize         int      `toml:"max_queue_size"`
	MaxRequestAge        string   `toml:"max_request_age"`
	ReplayDelay          string   `toml:"replay_delay"`
	ReplayInterval       string   `toml:"replay_interval"`
	MaxRetries           int      `toml:"max_retries"`
	RetryDelays          []string `toml:"retry_delays"`
	OfflineMode          string   `toml:"offline_mode"`
	ProbeURL             string   `toml:"probe_url"`
	ProbeInterval        string   `toml:"probe_interval"`
	ListenAddr           string   `toml:"listen_addr"`
	CurrentUserPath      string   `toml:"current_user_path"`
	RefreshPath          string   `toml:"refresh_path"`
	KeyringService       string   `toml:"keyring_service"`
	LogLevel             string   `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.reqguard/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".reqguard", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("base-url", fc.BaseURL, &cfg.BaseURL)
	s.setString("store", fc.Store, &cfg.Store)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("redis-url", fc.RedisURL, &cfg.RedisURL)
	s.setString("sqlite-path", fc.SQLitePath, &cfg.SQLitePath)
	s.setString("offline-mode", fc.OfflineMode, &cfg.OfflineMode)
	s.setString("probe-url", fc.ProbeURL, &cfg.ProbeURL)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("current-user-path", fc.CurrentUserPath, &cfg.CurrentUserPath)
	s.setString("refresh-path", fc.RefreshPath, &cfg.RefreshPath)
	s.setString("keyring-service", fc.KeyringService, &cfg.KeyringService)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"timeout", fc.Timeout, &cfg.Timeout},
		{"cache-ttl", fc.CacheTTL, &cfg.CacheTTL},
		{"cache-cleanup-interval", fc.CacheCleanupInterval, &cfg.CacheCleanupInterval},
		{"max-request-age", fc.MaxRequestAge, &cfg.MaxRequestAge},
		{"replay-delay", fc.ReplayDelay, &cfg.ReplayDelay},
		{"replay-interval", fc.ReplayInterval, &cfg.ReplayInterval},
		{"probe-interval", fc.ProbeInterval, &cfg.ProbeInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}
	if err := s.setDurations("retry-delays", fc.RetryDelays, &cfg.RetryDelays); err != nil {
		return err
	}

	s.setInt("max-queue-size", fc.MaxQueueSize, &cfg.MaxQueueSize)
	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
