// Package reqguard is a resilient HTTP request client.
//
// Example usage:
//
//	client, err := reqguard.New(reqguard.Config{BaseURL: "https://api.example.com"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := client.Get(ctx, "/widgets", nil)
//
// This package re-exports the most used names of pkg/reqguard; see that
// package for options, plugins and lifecycle control.
package reqguard

import (
	"github.com/bft-labs/reqguard/pkg/reqguard"
)

// Config holds the settings for a Client.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = reqguard.Config

// Client issues requests with caching, retries and an offline queue.
type Client = reqguard.Client

// Option configures optional behavior of a Client.
type Option = reqguard.Option

// New builds a client. See pkg/reqguard.New.
func New(cfg Config, opts ...Option) (*Client, error) {
	return reqguard.New(cfg, opts...)
}

// DefaultConfig returns a Config with default values and no BaseURL.
func DefaultConfig() Config {
	return reqguard.DefaultConfig()
}

// ErrOffline is matched by errors for mutations queued while offline.
var ErrOffline = reqguard.ErrOffline
