package configwatcher

import "github.com/bft-labs/reqguard/pkg/reqguard"

// WithConfigWatcher returns a reqguard Option that reloads settings from
// cfg.Path whenever the file changes.
//
// Usage:
//
//	client, err := reqguard.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "/home/me/.reqguard/config.toml",
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) reqguard.Option {
	return reqguard.WithPlugin(New(cfg))
}
