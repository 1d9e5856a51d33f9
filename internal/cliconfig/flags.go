package cliconfig

import (
	"fmt"

	pflag "github.com/spf13/pflag"
)

// BindFlags registers the client flags on fs, writing into cfg. Flag names
// match the changed-map keys used by ApplyFileConfig and ApplyEnvConfig.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "backend base URL")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")

	fs.StringVar(&cfg.Store, "store", cfg.Store, "durable store: file, redis, sqlite or memory")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the file store (default: $HOME/.reqguard/state)")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis URL for the redis store")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "database path for the sqlite store")

	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "freshness window of cached GET responses")
	fs.DurationVar(&cfg.CacheCleanupInterval, "cache-cleanup-interval", cfg.CacheCleanupInterval, "how often expired cache entries are purged")

	fs.IntVar(&cfg.MaxQueueSize, "max-queue-size", cfg.MaxQueueSize, "maximum queued offline mutations")
	fs.DurationVar(&cfg.MaxRequestAge, "max-request-age", cfg.MaxRequestAge, "how long a queued mutation may wait")
	fs.DurationVar(&cfg.ReplayDelay, "replay-delay", cfg.ReplayDelay, "pause between replayed mutations")
	fs.DurationVar(&cfg.ReplayInterval, "replay-interval", cfg.ReplayInterval, "periodic queue replay interval while online")

	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retries per request before giving up")
	fs.DurationSliceVar(&cfg.RetryDelays, "retry-delays", cfg.RetryDelays, "backoff delays, comma separated")

	fs.StringVar(&cfg.OfflineMode, "offline-mode", cfg.OfflineMode, "connectivity mode: auto, online or offline")
	fs.StringVar(&cfg.ProbeURL, "probe-url", cfg.ProbeURL, "URL probed with HEAD to detect connectivity (default: base-url)")
	fs.DurationVar(&cfg.ProbeInterval, "probe-interval", cfg.ProbeInterval, "time between connectivity probes")

	fs.StringVar(&cfg.CurrentUserPath, "current-user-path", cfg.CurrentUserPath, "endpoint whose auth failures are not surfaced")
	fs.StringVar(&cfg.RefreshPath, "refresh-path", cfg.RefreshPath, "token refresh endpoint")
	fs.StringVar(&cfg.KeyringService, "keyring-service", cfg.KeyringService, "OS keyring service holding session tokens (empty disables auth)")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
}

// ChangedFlags returns the names of flags set on the command line.
func ChangedFlags(fs *pflag.FlagSet) map[string]bool {
	changed := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}

// Load layers the config file, then REQGUARD_* variables, over cfg. Flags
// already parsed into cfg win. A missing file at the default path is not an error.
func Load(cfg *Config, fs *pflag.FlagSet, path string) error {
	changed := ChangedFlags(fs)
	explicit := path != ""
	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" && (explicit || FileExists(path)) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}
