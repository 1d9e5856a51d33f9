package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/metrics"
	"github.com/bft-labs/reqguard/internal/ports"
)

// Mode selects how the Monitor decides connectivity.
type Mode string

const (
	// ModeAuto probes the backend.
	ModeAuto Mode = "auto"
	// ModeOnline forces online.
	ModeOnline Mode = "online"
	// ModeOffline forces offline; every mutation is queued.
	ModeOffline Mode = "offline"
)

// ParseMode validates a mode string. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeOnline, ModeOffline:
		return m, nil
	default:
		return "", fmt.Errorf("unknown offline mode %q (want auto, online or offline)", s)
	}
}

// Default monitor settings.
const (
	DefaultProbeInterval = 15 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// URL is probed with HEAD. Any HTTP answer counts as online.
	URL string

	// Interval between probes while online.
	Interval time.Duration

	// Timeout bounds one probe.
	Timeout time.Duration

	Mode Mode
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = logAdapter.OrNoop(logger) }
}

// Monitor probes the backend on an interval and publishes transitions.
type Monitor struct {
	hub

	cfg    MonitorConfig
	client ports.HTTPClient
	logger ports.Logger

	mu      sync.Mutex
	mode    Mode
	reached bool
	wake    chan struct{}
}

// NewMonitor creates a Monitor. It reports online until a probe fails.
func NewMonitor(cfg MonitorConfig, client ports.HTTPClient, opts ...MonitorOption) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if client == nil {
		client = http.DefaultClient
	}
	m := &Monitor{
		cfg:     cfg,
		client:  client,
		logger:  logAdapter.NoopLogger{},
		mode:    cfg.Mode,
		reached: true,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Online reports the effective state for the current mode.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onlineLocked()
}

func (m *Monitor) onlineLocked() bool {
	switch m.mode {
	case ModeOnline:
		return true
	case ModeOffline:
		return false
	default:
		return m.reached
	}
}

// Mode returns the current mode.
func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode switches mode and publishes if the effective state changed.
func (m *Monitor) SetMode(mode Mode) {
	m.update(func() { m.mode = mode })
	m.logger.Info("connectivity mode changed", ports.String("mode", string(mode)))
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Probe checks the backend once and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	ok := m.probe(ctx)
	if ctx.Err() != nil {
		return m.Online()
	}
	m.update(func() { m.reached = ok })
	return ok
}

func (m *Monitor) probe(ctx context.Context) bool {
	if m.cfg.URL == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.URL, nil)
	if err != nil {
		m.logger.Warn("invalid probe url", ports.String("url", m.cfg.URL), ports.Err(err))
		return true
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug("probe failed", ports.String("url", m.cfg.URL), ports.Err(err))
		return false
	}
	resp.Body.Close()
	return true
}

// update applies fn and publishes when the effective state flips.
func (m *Monitor) update(fn func()) {
	m.mu.Lock()
	before := m.onlineLocked()
	fn()
	after := m.onlineLocked()
	m.mu.Unlock()

	if before != after {
		metrics.SetOnline(after)
		if after {
			m.logger.Info("backend reachable")
		} else {
			m.logger.Warn("backend unreachable")
		}
		m.publish(after)
	}
}

// Run probes until ctx ends. While offline, probes back off exponentially
// up to the online interval.
func (m *Monitor) Run(ctx context.Context) error {
	bo := newBackoff(DefaultBackoffInitial, m.cfg.Interval)
	for {
		wait := m.cfg.Interval
		if m.Mode() == ModeAuto {
			if m.Probe(ctx) {
				bo.Reset()
			} else {
				wait = bo.Next()
			}
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-m.wake:
			t.Stop()
		case <-t.C:
		}
	}
}
