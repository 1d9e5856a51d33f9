package queuereplay

import "github.com/bft-labs/reqguard/pkg/reqguard"

// WithQueueReplay returns a reqguard Option that replays the offline queue
// every cfg.CheckInterval while online.
//
// Usage:
//
//	client, err := reqguard.New(cfg,
//	    queuereplay.WithQueueReplay(queuereplay.Config{
//	        CheckInterval: time.Minute,
//	    }),
//	)
func WithQueueReplay(cfg Config) reqguard.Option {
	return reqguard.WithPlugin(New(cfg))
}

// WithDefaultQueueReplay enables queue replay with default settings
// (every 30s, first pass on startup).
func WithDefaultQueueReplay() reqguard.Option {
	return WithQueueReplay(DefaultConfig())
}
