package reqguard

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	httpAdapter "github.com/bft-labs/reqguard/internal/adapters/http"
	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/adapters/memory"
	"github.com/bft-labs/reqguard/internal/app"
	"github.com/bft-labs/reqguard/internal/auth"
	"github.com/bft-labs/reqguard/internal/cache"
	"github.com/bft-labs/reqguard/internal/connectivity"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/pipeline"
	"github.com/bft-labs/reqguard/internal/ports"
	"github.com/bft-labs/reqguard/internal/queue"
	"github.com/bft-labs/reqguard/internal/recovery"
)

// QueueKeyPrefix prefixes the durable queue snapshot record.
const QueueKeyPrefix = "reqguard:queue:"

// Client is a resilient request client. Use New() to create one; Do and the
// method helpers work immediately, Start() adds the background workers.
type Client struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	emitter   *eventEmitter
	logger    ports.Logger

	transport ports.Transport
	cache     *cache.Cache
	queue     *queue.Queue
	coord     *recovery.Coordinator
	pipeline  *pipeline.Pipeline
	conn      ports.Connectivity
	monitor   *connectivity.Monitor

	plugins []Plugin

	mu      sync.Mutex
	cancel  context.CancelFunc
	unbinds []func()
}

// New builds a client in StateStopped. Durable cache entries and queued
// mutations are restored from the configured store.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := logAdapter.OrNoop(o.logger)
	emitter := &eventEmitter{handler: o.eventHandler}
	ctx := context.Background()

	store := o.store
	if store == nil {
		store = memory.NewStore()
	}

	transport := o.transport
	if transport == nil {
		topts := []httpAdapter.Option{httpAdapter.WithTimeout(cfg.Timeout), httpAdapter.WithLogger(logger)}
		if o.tokenStore != nil {
			topts = append(topts, httpAdapter.WithAuthorizer(auth.NewAuthorizer(o.tokenStore)))
		}
		transport = httpAdapter.NewTransport(cfg.BaseURL, o.httpClient, topts...)
	}

	c := cache.New(ctx, cache.Config{
		DefaultTTL:      cfg.CacheTTL,
		CleanupInterval: cfg.CacheCleanupInterval,
		Origin:          cfg.Origin,
	}, store, cache.WithLogger(logger))

	qopts := []queue.Option{
		queue.WithSnapshotStore(store, QueueKeyPrefix+cfg.Origin),
		queue.WithLogger(logger),
	}
	if o.replaySleep != nil {
		qopts = append(qopts, queue.WithSleep(o.replaySleep))
	}
	q := queue.New(ctx, queue.Config{
		MaxSize:     cfg.MaxQueueSize,
		MaxAge:      cfg.MaxRequestAge,
		MaxRetries:  queue.DefaultMaxRetries,
		ReplayDelay: cfg.ReplayDelay,
	}, transport, qopts...)

	conn := o.connectivity
	var monitor *connectivity.Monitor
	if conn == nil {
		mode, _ := connectivity.ParseMode(cfg.OfflineMode)
		monitor = connectivity.NewMonitor(connectivity.MonitorConfig{
			URL:      cfg.ProbeURL,
			Interval: cfg.ProbeInterval,
			Mode:     mode,
		}, o.httpClient, connectivity.WithLogger(logger))
		conn = monitor
	}
	q.SetOffline(ctx, !conn.Online())

	authRecovery := o.authRecovery
	if authRecovery == nil && o.tokenStore != nil {
		aopts := []auth.Option{auth.WithRefreshPath(cfg.RefreshPath), auth.WithLogger(logger)}
		if o.loginPrompt != nil {
			aopts = append(aopts, auth.WithLoginPrompt(o.loginPrompt))
		}
		authRecovery = auth.NewRefresher(o.tokenStore, transport, aopts...)
	}

	ropts := []recovery.Option{recovery.WithLogger(logger)}
	if authRecovery != nil {
		ropts = append(ropts, recovery.WithAuthRecovery(authRecovery))
	}
	if o.retrySleep != nil {
		ropts = append(ropts, recovery.WithSleep(o.retrySleep))
	}
	coord := recovery.New(recovery.Config{
		MaxRetries:      cfg.MaxRetries,
		Backoff:         cfg.RetryDelays,
		CurrentUserPath: cfg.CurrentUserPath,
	}, c, q, ropts...)

	return &Client{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		emitter:   emitter,
		logger:    logger,
		transport: transport,
		cache:     c,
		queue:     q,
		coord:     coord,
		pipeline:  pipeline.New(transport, c, coord, pipeline.WithLogger(logger)),
		conn:      conn,
		monitor:   monitor,
		plugins:   o.plugins,
	}, nil
}

// Start runs the background workers: cache cleanup, the connectivity
// monitor, queue replay on reconnect, and plugins.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	c.unbind()
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.lifecycle.SetCancel(cancel)

	c.unbinds = []func(){
		c.queue.Bind(runCtx, c.conn),
		c.conn.Subscribe(c.emitter.onConnectivity),
	}

	c.lifecycle.Go(runCtx, "cache-cleanup", func(ctx context.Context) error {
		c.cache.Run(ctx)
		return ctx.Err()
	})
	if c.monitor != nil {
		c.lifecycle.Go(runCtx, "connectivity-monitor", c.monitor.Run)
	}

	pluginCfg := PluginConfig{Client: c, Logger: c.logger}
	for _, p := range c.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			c.unbind()
			_ = c.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
			_ = c.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		c.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	if err := c.lifecycle.TransitionTo(app.StateRunning, "workers started"); err != nil {
		return err
	}

	if c.queue.Len() > 0 && !c.queue.IsOffline() {
		c.lifecycle.Go(runCtx, "queue-replay", func(ctx context.Context) error {
			c.queue.Process(ctx)
			return nil
		})
	}
	return nil
}

// Stop cancels the workers and waits for them. Returns ErrShutdownTimeout
// if they do not finish in time.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.lifecycle.CanStop() {
		c.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		c.mu.Unlock()
		return err
	}
	c.unbind()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	err := c.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	c.queue.Wait()

	shutdownCtx := context.Background()
	for i := len(c.plugins) - 1; i >= 0; i-- {
		p := c.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			c.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(shutdownErr))
		}
	}

	if err != nil {
		_ = c.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = c.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

func (c *Client) unbind() {
	for _, fn := range c.unbinds {
		fn()
	}
	c.unbinds = nil
}

// Do issues call with caching and recovery. Failures are *APIError.
func (c *Client) Do(ctx context.Context, call Call) (*Response, error) {
	return c.pipeline.Do(ctx, call)
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.pipeline.Get(ctx, path, params)
}

// Post issues a POST.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.pipeline.Post(ctx, path, body)
}

// Put issues a PUT.
func (c *Client) Put(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.pipeline.Put(ctx, path, body)
}

// Patch issues a PATCH.
func (c *Client) Patch(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.pipeline.Patch(ctx, path, body)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.pipeline.Delete(ctx, path)
}

// Status returns the current lifecycle state.
func (c *Client) Status() State {
	return State(c.lifecycle.State())
}

// Report returns the observability snapshot.
func (c *Client) Report() StatusReport {
	qs := c.queue.Status()
	r := StatusReport{
		State:        c.Status().String(),
		Online:       c.conn.Online(),
		QueueLength:  qs.QueueLength,
		CacheEntries: c.cache.Size(),
	}
	if c.monitor != nil {
		r.Mode = string(c.monitor.Mode())
	}
	if items := c.queue.Items(); len(items) > 0 {
		oldest := items[0].EnqueuedAt
		r.OldestQueued = &oldest
	}
	return r
}

// QueuedItems lists pending mutations, oldest first.
func (c *Client) QueuedItems() []QueueItem {
	return c.queue.Items()
}

// ReplayQueue replays queued mutations now. It does nothing while offline.
func (c *Client) ReplayQueue(ctx context.Context) (replayed, remaining int) {
	res := c.queue.Process(ctx)
	return res.Replayed, c.queue.Len()
}

// ClearCache drops every cached response, in memory and in the store.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.cache.Clear(ctx)
}

// SetOfflineMode switches the connectivity mode (auto, online, offline).
// It fails when a custom Connectivity source was supplied.
func (c *Client) SetOfflineMode(mode string) error {
	m, err := connectivity.ParseMode(mode)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if c.monitor == nil {
		return fmt.Errorf("offline mode is managed by a custom connectivity source")
	}
	c.monitor.SetMode(m)
	return nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}
