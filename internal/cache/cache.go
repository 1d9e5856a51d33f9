// Package cache implements the response cache: successful GET responses kept
// with a per-entry expiry and persisted to a durable per-origin store.
//
// Each entry is persisted as its own record, so a write touches one key
// instead of re-serializing the whole cache. On construction the cache
// restores every record that has not yet expired and removes the rest.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/metrics"
	"github.com/bft-labs/reqguard/internal/ports"
)

// Default configuration values.
const (
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
	DefaultPrefix          = "reqguard:cache:"
)

// Config holds cache settings.
type Config struct {
	// DefaultTTL is the freshness window for calls without a CacheTTL override.
	DefaultTTL time.Duration

	// CleanupInterval is how often Run sweeps expired entries.
	CleanupInterval time.Duration

	// Origin namespaces the durable records (usually the API base URL host).
	Origin string

	// Prefix is prepended to every durable key.
	Prefix string
}

// DefaultConfig returns a Config with the default TTL and cleanup interval.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      DefaultTTL,
		CleanupInterval: DefaultCleanupInterval,
		Origin:          "default",
		Prefix:          DefaultPrefix,
	}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(c *Cache) { c.logger = logAdapter.OrNoop(logger) }
}

// Cache stores successful GET responses.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry

	store  ports.KVStore
	cfg    Config
	now    func() time.Time
	logger ports.Logger
}

// New creates a cache backed by store and restores its unexpired records.
// A nil store keeps the cache in memory only.
func New(ctx context.Context, cfg Config, store ports.KVStore, opts ...Option) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Origin == "" {
		cfg.Origin = "default"
	}

	c := &Cache{
		entries: make(map[string]*domain.CacheEntry),
		store:   store,
		cfg:     cfg,
		now:     time.Now,
		logger:  logAdapter.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.restore(ctx)
	return c
}

// Key returns the cache key for a call: method, path, and the canonical
// (sorted) encoding of its query parameters.
func Key(call domain.Call) string {
	return call.NormalizedMethod() + call.URL + "?" + call.Params.Encode()
}

// Set stores resp for call when the call is a GET and the status is 2xx.
// Anything else is ignored.
func (c *Cache) Set(ctx context.Context, call domain.Call, resp *domain.Response) {
	if call.NormalizedMethod() != http.MethodGet || !resp.OK() {
		return
	}

	ttl := call.CacheTTL
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	now := c.now()
	key := Key(call)

	headers := make(map[string]string, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}
	entry := &domain.CacheEntry{
		Key:        key,
		Data:       append([]byte(nil), resp.Data...),
		StatusCode: resp.StatusCode,
		StatusText: resp.StatusText,
		Headers:    headers,
		StoredAt:   now,
		ExpiresAt:  now.Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	metrics.SetCacheEntries(len(c.entries))
	c.persist(ctx, entry)
}

// Get returns the fresh cached response for call. An expired entry is deleted
// and reported as a miss.
func (c *Cache) Get(ctx context.Context, call domain.Call) (*domain.Response, bool) {
	key := Key(call)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		metrics.RecordCacheLookup("miss")
		return nil, false
	}
	if entry.ExpiredAt(c.now()) {
		c.deleteLocked(ctx, key)
		metrics.RecordCacheLookup("expired")
		return nil, false
	}
	metrics.RecordCacheLookup("hit")
	return entry.Response(), true
}

// Peek returns the fresh cached response for call without touching an expired
// entry, which stays available to GetStale.
func (c *Cache) Peek(ctx context.Context, call domain.Call) (*domain.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[Key(call)]
	if !ok || entry.ExpiredAt(c.now()) {
		metrics.RecordCacheLookup("miss")
		return nil, false
	}
	metrics.RecordCacheLookup("hit")
	return entry.Response(), true
}

// GetStale returns whatever is cached for call, ignoring expiry, tagged IsStale.
// It never deletes. It serves the stale fallback after retries are exhausted.
func (c *Cache) GetStale(ctx context.Context, call domain.Call) (*domain.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[Key(call)]
	if !ok {
		return nil, false
	}
	metrics.RecordCacheLookup("stale")
	resp := entry.Response()
	resp.IsStale = true
	return resp, true
}

// Cleanup deletes every expired entry and returns how many were removed.
func (c *Cache) Cleanup(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.ExpiredAt(now) {
			c.deleteLocked(ctx, key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("cache cleanup", ports.Int("removed", removed), ports.Int("remaining", len(c.entries)))
	}
	return removed
}

// Run calls Cleanup every CleanupInterval until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup(ctx)
		}
	}
}

// Clear empties the cache and removes its durable records.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*domain.CacheEntry)
	metrics.SetCacheEntries(0)
	if c.store == nil {
		return nil
	}

	keys, err := c.store.Keys(ctx, c.recordPrefix())
	if err != nil {
		return err
	}
	var errs []error
	for _, k := range keys {
		if err := c.store.Remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the number of entries held, fresh or not yet swept.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) recordPrefix() string {
	return c.cfg.Prefix + c.cfg.Origin + ":"
}

func (c *Cache) recordKey(key string) string {
	return c.recordPrefix() + key
}

// persist writes one entry. Caller holds c.mu.
func (c *Cache) persist(ctx context.Context, entry *domain.CacheEntry) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("failed to encode cache entry", ports.String("key", entry.Key), ports.Err(err))
		return
	}
	if err := c.store.Write(ctx, c.recordKey(entry.Key), data); err != nil {
		c.logger.Warn("failed to persist cache entry", ports.String("key", entry.Key), ports.Err(err))
	}
}

// deleteLocked removes an entry from memory and the store. Caller holds c.mu.
func (c *Cache) deleteLocked(ctx context.Context, key string) {
	delete(c.entries, key)
	metrics.SetCacheEntries(len(c.entries))
	if c.store == nil {
		return
	}
	if err := c.store.Remove(ctx, c.recordKey(key)); err != nil {
		c.logger.Warn("failed to remove cache record", ports.String("key", key), ports.Err(err))
	}
}

func (c *Cache) restore(ctx context.Context) {
	if c.store == nil {
		return
	}
	keys, err := c.store.Keys(ctx, c.recordPrefix())
	if err != nil {
		c.logger.Warn("failed to list cache records, starting empty", ports.Err(err))
		return
	}

	now := c.now()
	restored, dropped := 0, 0
	for _, rk := range keys {
		data, err := c.store.Read(ctx, rk)
		if err != nil {
			continue
		}
		var entry domain.CacheEntry
		if err := json.Unmarshal(data, &entry); err != nil || entry.Key == "" || !strings.HasSuffix(rk, entry.Key) {
			_ = c.store.Remove(ctx, rk)
			dropped++
			continue
		}
		if entry.ExpiredAt(now) {
			_ = c.store.Remove(ctx, rk)
			dropped++
			continue
		}
		c.entries[entry.Key] = &entry
		restored++
	}
	metrics.SetCacheEntries(len(c.entries))
	c.logger.Info("cache restored", ports.Int("restored", restored), ports.Int("dropped", dropped))
}
