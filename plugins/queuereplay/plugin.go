// Package queuereplay periodically replays queued mutations while the client
// is online. Reconnects replay the queue on their own; this plugin covers
// items that failed a replay and were requeued while connectivity held.
package queuereplay

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/reqguard/pkg/reqguard"
)

// Config holds configuration options for the queue replay plugin.
type Config struct {
	// CheckInterval is how often the queue is checked.
	// Default: 30 seconds
	CheckInterval time.Duration

	// RunImmediately if true, runs a replay pass on startup.
	// Default: true
	RunImmediately bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:  30 * time.Second,
		RunImmediately: true,
	}
}

// Plugin runs the replay loop.
type Plugin struct {
	mu sync.Mutex

	checkInterval  time.Duration
	runImmediately bool

	client *reqguard.Client
	logger reqguard.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
	passes int
}

// New creates a queue replay plugin.
func New(cfg Config) *Plugin {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	return &Plugin{
		checkInterval:  cfg.CheckInterval,
		runImmediately: cfg.RunImmediately,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "queuereplay"
}

// Initialize starts the replay loop.
func (p *Plugin) Initialize(ctx context.Context, cfg reqguard.PluginConfig) error {
	p.mu.Lock()
	p.client = cfg.Client
	p.logger = cfg.Logger
	p.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("queue replay plugin initialized",
		reqguard.LogField{Key: "interval", Value: p.checkInterval})

	p.wg.Add(1)
	go p.replayLoop(loopCtx)
	return nil
}

// Shutdown stops the replay loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// Passes returns how many replay passes actually ran.
func (p *Plugin) Passes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passes
}

func (p *Plugin) replayLoop(ctx context.Context) {
	defer p.wg.Done()

	if p.runImmediately {
		p.replayOnce(ctx)
	}

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.replayOnce(ctx)
		}
	}
}

// replayOnce skips the pass when offline or when there is nothing queued.
func (p *Plugin) replayOnce(ctx context.Context) {
	report := p.client.Report()
	if !report.Online || report.QueueLength == 0 {
		return
	}

	replayed, remaining := p.client.ReplayQueue(ctx)

	p.mu.Lock()
	p.passes++
	p.mu.Unlock()

	p.logger.Info("queue replay pass",
		reqguard.LogField{Key: "replayed", Value: replayed},
		reqguard.LogField{Key: "remaining", Value: remaining})
}

var _ reqguard.Plugin = (*Plugin)(nil)
