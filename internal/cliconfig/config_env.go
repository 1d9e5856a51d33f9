package cliconfig

import (
	"os"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "REQGUARD_"

// ApplyEnvConfig applies configuration from environment variables (REQGUARD_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("base-url", env("BASE_URL"), &cfg.BaseURL)
	s.setString("store", env("STORE"), &cfg.Store)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("redis-url", env("REDIS_URL"), &cfg.RedisURL)
	s.setString("sqlite-path", env("SQLITE_PATH"), &cfg.SQLitePath)
	s.setString("offline-mode", env("OFFLINE_MODE"), &cfg.OfflineMode)
	s.setString("probe-url", env("PROBE_URL"), &cfg.ProbeURL)
	s.setString("listen", env("LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("current-user-path", env("CURRENT_USER_PATH"), &cfg.CurrentUserPath)
	s.setString("refresh-path", env("REFRESH_PATH"), &cfg.RefreshPath)
	s.setString("keyring-service", env("KEYRING_SERVICE"), &cfg.KeyringService)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	durations := []struct {
		flag string
		name string
		dst  *time.Duration
	}{
		{"timeout", "TIMEOUT", &cfg.Timeout},
		{"cache-ttl", "CACHE_TTL", &cfg.CacheTTL},
		{"cache-cleanup-interval", "CACHE_CLEANUP_INTERVAL", &cfg.CacheCleanupInterval},
		{"max-request-age", "MAX_REQUEST_AGE", &cfg.MaxRequestAge},
		{"replay-delay", "REPLAY_DELAY", &cfg.ReplayDelay},
		{"replay-interval", "REPLAY_INTERVAL", &cfg.ReplayInterval},
		{"probe-interval", "PROBE_INTERVAL", &cfg.ProbeInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, env(d.name), d.dst); err != nil {
			return err
		}
	}

	if v := env("RETRY_DELAYS"); v != "" {
		if err := s.setDurations("retry-delays", strings.Split(v, ","), &cfg.RetryDelays); err != nil {
			return err
		}
	}

	if err := s.setIntFromString("max-queue-size", env("MAX_QUEUE_SIZE"), &cfg.MaxQueueSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-retries", env("MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}

	return nil
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}
