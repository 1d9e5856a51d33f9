package reqguard

import (
	"fmt"
	"net/url"
	"time"

	httpAdapter "github.com/bft-labs/reqguard/internal/adapters/http"
	"github.com/bft-labs/reqguard/internal/auth"
	"github.com/bft-labs/reqguard/internal/cache"
	"github.com/bft-labs/reqguard/internal/connectivity"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/queue"
	"github.com/bft-labs/reqguard/internal/recovery"
)

// Config holds the settings for a Client.
type Config struct {
	// BaseURL is the backend relative call URLs resolve against. Required.
	BaseURL string

	// Timeout bounds a call that sets none. Default: 30s
	Timeout time.Duration

	// Origin namespaces durable cache and queue records. Default: BaseURL host
	Origin string

	// CacheTTL is the default freshness window of a cached GET. Default: 5m
	CacheTTL time.Duration

	// CacheCleanupInterval is how often expired entries are purged. Default: 5m
	CacheCleanupInterval time.Duration

	// MaxQueueSize bounds the offline queue. Default: 50
	MaxQueueSize int

	// MaxRequestAge is how long a queued mutation may wait. Default: 1h
	MaxRequestAge time.Duration

	// ReplayDelay separates queued replays. Default: 100ms
	ReplayDelay time.Duration

	// MaxRetries caps retries per request key. Default: 3
	MaxRetries int

	// RetryDelays is the backoff table. Default: 1s, 2s, 4s
	RetryDelays []time.Duration

	// OfflineMode is auto, online or offline. Default: auto
	OfflineMode string

	// ProbeURL is checked with HEAD to detect connectivity. Default: BaseURL
	ProbeURL string

	// ProbeInterval is the time between probes while online. Default: 15s
	ProbeInterval time.Duration

	// CurrentUserPath is the endpoint whose auth failures are swallowed. Default: /auth/me
	CurrentUserPath string

	// RefreshPath is where refresh tokens are exchanged. Default: /auth/refresh
	RefreshPath string
}

// DefaultConfig returns a Config with default values and no BaseURL.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero fields with defaults.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = httpAdapter.DefaultTimeout
	}
	if c.Origin == "" {
		c.Origin = originOf(c.BaseURL)
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = cache.DefaultTTL
	}
	if c.CacheCleanupInterval <= 0 {
		c.CacheCleanupInterval = cache.DefaultCleanupInterval
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = queue.DefaultMaxSize
	}
	if c.MaxRequestAge <= 0 {
		c.MaxRequestAge = queue.DefaultMaxAge
	}
	if c.ReplayDelay <= 0 {
		c.ReplayDelay = queue.DefaultReplayDelay
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = recovery.DefaultMaxRetries
	}
	if len(c.RetryDelays) == 0 {
		c.RetryDelays = append([]time.Duration(nil), recovery.DefaultBackoff...)
	}
	if c.OfflineMode == "" {
		c.OfflineMode = string(connectivity.ModeAuto)
	}
	if c.ProbeURL == "" {
		c.ProbeURL = c.BaseURL
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = connectivity.DefaultProbeInterval
	}
	if c.CurrentUserPath == "" {
		c.CurrentUserPath = recovery.DefaultCurrentUserPath
	}
	if c.RefreshPath == "" {
		c.RefreshPath = auth.DefaultRefreshPath
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL is required", domain.ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q must be absolute", domain.ErrInvalidConfig, c.BaseURL)
	}
	if _, err := connectivity.ParseMode(c.OfflineMode); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	for _, d := range c.RetryDelays {
		if d < 0 {
			return fmt.Errorf("%w: retry delays must not be negative", domain.ErrInvalidConfig)
		}
	}
	return nil
}

func originOf(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "default"
}
