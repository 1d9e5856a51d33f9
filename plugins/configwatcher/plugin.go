// Package configwatcher reloads the runtime-tunable settings of a reqguard
// client when its TOML config file changes.
package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/reqguard/pkg/reqguard"
)

// Settings are the config keys that can change without a restart.
type Settings struct {
	OfflineMode string `toml:"offline_mode"`
	LogLevel    string `toml:"log_level"`
}

// ApplyFunc applies reloaded settings to a running client.
type ApplyFunc func(ctx context.Context, client *reqguard.Client, s Settings) error

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the config file to watch. Empty disables the plugin.
	Path string

	// DebounceDelay is the quiet period after a change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Apply receives the new settings. Default: ApplyOfflineMode
	Apply ApplyFunc
}

// DefaultConfig returns a Config with sensible defaults and no Path.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
		Apply:         ApplyOfflineMode,
	}
}

// ApplyOfflineMode switches the client's connectivity mode when the file sets one.
func ApplyOfflineMode(ctx context.Context, client *reqguard.Client, s Settings) error {
	if s.OfflineMode == "" {
		return nil
	}
	return client.SetOfflineMode(s.OfflineMode)
}

// Plugin watches the config file and reapplies Settings on every write.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	apply         ApplyFunc

	client   *reqguard.Client
	logger   reqguard.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// New creates a config watcher plugin.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	if cfg.Apply == nil {
		cfg.Apply = ApplyOfflineMode
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		apply:         cfg.Apply,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file's directory.
func (p *Plugin) Initialize(ctx context.Context, cfg reqguard.PluginConfig) error {
	p.mu.Lock()
	p.client = cfg.Client
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.path == "" {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors replace files on save, so watch the directory, not the file.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized", reqguard.LogField{Key: "path", Value: p.path})

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher and waits for a pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// Reloads returns how many times settings were applied.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", reqguard.LogField{Key: "error", Value: err})
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload(ctx)
	})
}

func (p *Plugin) reload(ctx context.Context) {
	s, err := Load(p.path)
	if err != nil {
		p.logger.Error("config reload failed", reqguard.LogField{Key: "error", Value: err})
		return
	}
	if err := p.apply(ctx, p.client, s); err != nil {
		p.logger.Error("config apply failed", reqguard.LogField{Key: "error", Value: err})
		return
	}

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	p.logger.Info("config reloaded",
		reqguard.LogField{Key: "offline_mode", Value: s.OfflineMode},
		reqguard.LogField{Key: "log_level", Value: s.LogLevel})
}

// Load reads the reloadable keys from a TOML file. Unknown keys are ignored.
func Load(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

var _ reqguard.Plugin = (*Plugin)(nil)
