// Package recovery decides, for each failed call, whether to retry with backoff,
// serve cached data, queue the call for later, delegate to authentication
// recovery, or give up.
package recovery

import (
	"context"
	"errors"
	"sync"
	"time"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/cache"
	"github.com/bft-labs/reqguard/internal/classify"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/metrics"
	"github.com/bft-labs/reqguard/internal/ports"
	"github.com/bft-labs/reqguard/internal/queue"
)

// Default configuration values.
const (
	DefaultMaxRetries      = 3
	DefaultCurrentUserPath = "/auth/me"
	fallbackDelay          = time.Second
)

// DefaultBackoff is the delay before each retry, indexed by attempts already made.
var DefaultBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Kind identifies what the caller should do with an Outcome.
type Kind int

const (
	// Propagate means recovery failed; surface the original error.
	Propagate Kind = iota
	// Resolve means Outcome.Response stands in for the failed call.
	Resolve
	// Retry means re-issue Outcome.Call.
	Retry
	// Handled means authentication recovery already dealt with the failure.
	Handled
)

func (k Kind) String() string {
	switch k {
	case Resolve:
		return "resolve"
	case Retry:
		return "retry"
	case Handled:
		return "handled"
	default:
		return "propagate"
	}
}

// Outcome is the coordinator's decision for one failure.
type Outcome struct {
	Kind           Kind
	Response       *domain.Response
	Call           domain.Call
	Classification domain.Classification
}

// Config holds coordinator settings.
type Config struct {
	MaxRetries      int
	Backoff         []time.Duration
	CurrentUserPath string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		Backoff:         append([]time.Duration(nil), DefaultBackoff...),
		CurrentUserPath: DefaultCurrentUserPath,
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAuthRecovery sets the collaborator for AUTHENTICATION_ERROR failures.
func WithAuthRecovery(auth ports.AuthRecovery) Option {
	return func(c *Coordinator) { c.auth = auth }
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(c *Coordinator) { c.logger = logAdapter.OrNoop(logger) }
}

// Coordinator composes the classifier, cache, queue and auth recovery.
type Coordinator struct {
	cfg    Config
	cache  *cache.Cache
	queue  *queue.Queue
	auth   ports.AuthRecovery
	sleep  func(ctx context.Context, d time.Duration) error
	logger ports.Logger

	mu      sync.Mutex
	retries map[string]int
}

// New creates a coordinator. cache and queue may be nil.
func New(cfg Config, c *cache.Cache, q *queue.Queue, opts ...Option) *Coordinator {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = append([]time.Duration(nil), DefaultBackoff...)
	}
	if cfg.CurrentUserPath == "" {
		cfg.CurrentUserPath = DefaultCurrentUserPath
	}
	co := &Coordinator{
		cfg:     cfg,
		cache:   c,
		queue:   q,
		sleep:   sleepCtx,
		logger:  logAdapter.NoopLogger{},
		retries: make(map[string]int),
	}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

// AttemptRecovery decides what to do about err, the failure of call. The
// returned error is non-nil only for a mutation that was queued while offline
// (a *domain.OfflineError) or when ctx ended during a backoff wait.
func (c *Coordinator) AttemptRecovery(ctx context.Context, err error, call domain.Call) (Outcome, error) {
	cl := classify.Classify(err)
	out := Outcome{Kind: Propagate, Classification: cl}
	metrics.RecordFailure(string(cl.Type))

	if c.offline() || cl.Type == domain.NetworkError {
		if call.IsRead() {
			if resp, ok := c.cachedFresh(ctx, call); ok {
				c.logger.Info("serving cached response while offline", ports.String("url", call.URL))
				out.Kind = Resolve
				out.Response = resp
				return out, nil
			}
		} else if c.queue != nil {
			if item, ok := c.queue.Enqueue(ctx, call); ok {
				return out, &domain.OfflineError{Original: err, QueueID: item.ID}
			}
		}
	}

	if !cl.Recoverable {
		return out, nil
	}

	if cl.Type == domain.AuthenticationError {
		return c.recoverAuth(ctx, err, call, out)
	}

	if cl.Retryable {
		return c.retry(ctx, call, out)
	}

	return out, nil
}

func (c *Coordinator) recoverAuth(ctx context.Context, err error, call domain.Call, out Outcome) (Outcome, error) {
	if c.auth == nil {
		return out, nil
	}
	resp, authErr := c.auth.HandleAuthError(ctx, err, call)
	switch {
	case authErr == nil && resp != nil:
		out.Kind = Resolve
		out.Response = resp
	case authErr == nil:
		out.Kind = Handled
	case call.URL == c.cfg.CurrentUserPath:
		c.logger.Debug("auth recovery failed on current user lookup", ports.Err(authErr))
		out.Kind = Handled
	default:
		c.logger.Warn("auth recovery failed", ports.String("url", call.URL), ports.Err(authErr))
	}
	return out, nil
}

func (c *Coordinator) retry(ctx context.Context, call domain.Call, out Outcome) (Outcome, error) {
	key := call.RequestKey()

	c.mu.Lock()
	attempts := c.retries[key]
	if attempts >= c.cfg.MaxRetries {
		delete(c.retries, key)
		c.mu.Unlock()

		c.logger.Warn("retries exhausted",
			ports.String("method", call.NormalizedMethod()),
			ports.String("url", call.URL),
			ports.Int("attempts", attempts),
		)
		if call.IsRead() && c.cache != nil {
			if resp, ok := c.cache.GetStale(ctx, call); ok {
				out.Kind = Resolve
				out.Response = resp
			}
		}
		return out, nil
	}
	c.retries[key] = attempts + 1
	c.mu.Unlock()

	delay := c.delay(attempts)
	c.logger.Info("retrying request",
		ports.String("method", call.NormalizedMethod()),
		ports.String("url", call.URL),
		ports.Int("attempt", attempts+1),
		ports.Duration("delay", delay),
	)
	metrics.RecordRetry(call.NormalizedMethod())

	if err := c.sleep(ctx, delay); err != nil {
		c.ResetRetries(call)
		return out, err
	}

	next := call.Clone()
	next.RetryAttempt = attempts + 1
	out.Kind = Retry
	out.Call = next
	return out, nil
}

// ResetRetries clears the retry counter for call's request key.
func (c *Coordinator) ResetRetries(call domain.Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.retries, call.RequestKey())
}

// Attempts returns how many retries have been issued for call's request key.
func (c *Coordinator) Attempts(call domain.Call) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries[call.RequestKey()]
}

func (c *Coordinator) delay(attempts int) time.Duration {
	if attempts < len(c.cfg.Backoff) {
		return c.cfg.Backoff[attempts]
	}
	return fallbackDelay
}

func (c *Coordinator) offline() bool {
	return c.queue != nil && c.queue.IsOffline()
}

func (c *Coordinator) cachedFresh(ctx context.Context, call domain.Call) (*domain.Response, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Peek(ctx, call)
}

// IsOffline reports whether err is a queued-while-offline rejection.
func IsOffline(err error) bool {
	var oe *domain.OfflineError
	return errors.As(err, &oe)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
