package ports

// Connectivity reports whether the network is reachable and publishes transitions.
type Connectivity interface {
	// Online returns the current connectivity state.
	Online() bool

	// Subscribe registers fn to be called on every transition with the new state.
	// The returned function removes the subscription.
	Subscribe(fn func(online bool)) (cancel func())
}
