package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/domain"
)

var allStates = []State{StateStopped, StateStarting, StateRunning, StateStopping, StateCrashed}

type transition struct {
	from, to State
	reason   string
}

type recordingEmitter struct {
	mu  sync.Mutex
	got []transition
}

func (r *recordingEmitter) OnStateChange(previous, current State, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, transition{previous, current, reason})
}

func (r *recordingEmitter) transitions() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition{}, r.got...)
}

func lifecycleIn(state State, emitter EventEmitter) *Lifecycle {
	l := NewLifecycle(logAdapter.NewNoopLogger(), emitter)
	l.state = state
	return l
}

// running returns a lifecycle in StateRunning with a cancellable worker context.
func running(t *testing.T, emitter EventEmitter) (*Lifecycle, context.Context) {
	t.Helper()
	l := lifecycleIn(StateRunning, emitter)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	l.SetCancel(cancel)
	return l, ctx
}

func TestTransitionTo_FollowsAllowedTable(t *testing.T) {
	for _, from := range allStates {
		for _, to := range allStates {
			l := lifecycleIn(from, nil)
			err := l.TransitionTo(to, "test")

			if canMove(from, to) {
				if err != nil {
					t.Errorf("%v -> %v: error = %v, want nil", from, to, err)
				}
				if l.State() != to {
					t.Errorf("%v -> %v: state = %v", from, to, l.State())
				}
				continue
			}

			want := domain.ErrAlreadyRunning
			if from == StateStopped || from == StateCrashed {
				want = domain.ErrNotRunning
			}
			if !errors.Is(err, want) {
				t.Errorf("%v -> %v: error = %v, want %v", from, to, err, want)
			}
			if l.State() != from {
				t.Errorf("%v -> %v: rejected move changed state to %v", from, to, l.State())
			}
		}
	}
}

func TestTransitionTo_ClientRestartPath(t *testing.T) {
	em := &recordingEmitter{}
	l := NewLifecycle(logAdapter.NewNoopLogger(), em)

	steps := []State{StateStarting, StateRunning, StateStopping, StateStopped, StateStarting, StateCrashed, StateStarting}
	for _, s := range steps {
		if err := l.TransitionTo(s, "step"); err != nil {
			t.Fatalf("TransitionTo(%v) error = %v", s, err)
		}
	}

	got := em.transitions()
	if len(got) != len(steps) {
		t.Fatalf("events = %d, want %d", len(got), len(steps))
	}
	prev := StateStopped
	for i, e := range got {
		if e.from != prev || e.to != steps[i] {
			t.Errorf("event %d = %v -> %v, want %v -> %v", i, e.from, e.to, prev, steps[i])
		}
		prev = steps[i]
	}
}

func TestTransitionTo_RejectedMoveEmitsNothing(t *testing.T) {
	em := &recordingEmitter{}
	l := lifecycleIn(StateStopped, em)

	if err := l.TransitionTo(StateRunning, "skip starting"); err == nil {
		t.Fatal("Stopped -> Running accepted")
	}
	if n := len(em.transitions()); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
}

func TestCanStartCanStop(t *testing.T) {
	tests := []struct {
		state     State
		canStart  bool
		canStop   bool
		wantLabel string
	}{
		{StateStopped, true, false, "Stopped"},
		{StateStarting, false, true, "Starting"},
		{StateRunning, false, true, "Running"},
		{StateStopping, false, false, "Stopping"},
		{StateCrashed, true, false, "Crashed"},
		{State(42), false, false, "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.wantLabel, func(t *testing.T) {
			l := lifecycleIn(tt.state, nil)
			if l.CanStart() != tt.canStart {
				t.Errorf("CanStart() = %v", l.CanStart())
			}
			if l.CanStop() != tt.canStop {
				t.Errorf("CanStop() = %v", l.CanStop())
			}
			if tt.state.String() != tt.wantLabel {
				t.Errorf("String() = %q", tt.state.String())
			}
		})
	}
}

func TestGo_WorkerFailureCrashesAndStopsSiblings(t *testing.T) {
	em := &recordingEmitter{}
	l, ctx := running(t, em)

	cleanupStopped := make(chan struct{})
	l.Go(ctx, "cache-cleanup", func(ctx context.Context) error {
		<-ctx.Done()
		close(cleanupStopped)
		return ctx.Err()
	})
	l.Go(ctx, "connectivity-monitor", func(context.Context) error {
		return errors.New("health check failed")
	})

	select {
	case <-cleanupStopped:
	case <-time.After(time.Second):
		t.Fatal("cache-cleanup worker was not cancelled after monitor failure")
	}
	if err := l.WaitWithTimeout(time.Second); err != nil {
		t.Fatalf("WaitWithTimeout() error = %v", err)
	}
	if l.State() != StateCrashed {
		t.Fatalf("state = %v, want Crashed", l.State())
	}

	got := em.transitions()
	if len(got) != 1 || got[0].to != StateCrashed {
		t.Fatalf("transitions = %+v", got)
	}
	if !strings.HasPrefix(got[0].reason, "connectivity-monitor: ") {
		t.Errorf("reason = %q, want worker name prefix", got[0].reason)
	}
}

func TestGo_CancelledWorkersDoNotCrash(t *testing.T) {
	l, ctx := running(t, nil)

	for _, name := range []string{"cache-cleanup", "connectivity-monitor", "queue-replay"} {
		l.Go(ctx, name, func(ctx context.Context) error {
			<-ctx.Done()
			// a wrapped error after cancellation is still a clean exit
			return errors.New("stopped: " + ctx.Err().Error())
		})
	}
	l.Cancel()

	if err := l.WaitWithTimeout(time.Second); err != nil {
		t.Fatalf("WaitWithTimeout() error = %v", err)
	}
	if l.State() != StateRunning {
		t.Errorf("state = %v, want Running", l.State())
	}
}

func TestGo_NilErrorIsCleanExit(t *testing.T) {
	l, ctx := running(t, nil)
	l.Go(ctx, "queue-replay", func(context.Context) error { return nil })

	if err := l.WaitWithTimeout(time.Second); err != nil {
		t.Fatal(err)
	}
	if l.State() != StateRunning {
		t.Errorf("state = %v, want Running", l.State())
	}
}

func TestWaitWithTimeout_StuckWorker(t *testing.T) {
	l, ctx := running(t, nil)
	release := make(chan struct{})
	defer close(release)

	l.Go(ctx, "httpserver", func(context.Context) error {
		<-release
		return nil
	})

	err := l.WaitWithTimeout(10 * time.Millisecond)
	if !errors.Is(err, domain.ErrShutdownTimeout) {
		t.Errorf("error = %v, want ErrShutdownTimeout", err)
	}
}

func TestCancel_WithoutContext(t *testing.T) {
	l := lifecycleIn(StateStopped, nil)
	l.Cancel()
	if err := l.WaitWithTimeout(time.Millisecond); err != nil {
		t.Errorf("WaitWithTimeout() with no workers = %v", err)
	}
}
