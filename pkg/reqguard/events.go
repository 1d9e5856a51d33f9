package reqguard

import "github.com/bft-labs/reqguard/internal/app"

// State is the lifecycle state of a Client.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandler receives client events.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnConnectivityChange(online bool)
}

// eventEmitter adapts EventHandler to the lifecycle's emitter interface.
type eventEmitter struct {
	handler EventHandler
}

func (e *eventEmitter) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: State(previous),
		Current:  State(current),
		Reason:   reason,
	})
}

func (e *eventEmitter) onConnectivity(online bool) {
	if e.handler != nil {
		e.handler.OnConnectivityChange(online)
	}
}

// BaseEventHandler provides no-op implementations for embedding.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnConnectivityChange(bool)      {}
