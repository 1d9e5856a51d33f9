// Package reqguard provides a resilient HTTP request client for applications
// talking to a single backend.
//
// Every call goes through a pipeline that caches successful GET responses,
// classifies failures, and recovers from them: transient errors are retried
// with backoff, exhausted reads fall back to stale cached data, expired
// sessions are refreshed, and mutations issued while offline are queued and
// replayed once connectivity returns.
//
// # Basic Usage
//
//	client, err := reqguard.New(reqguard.Config{
//	    BaseURL: "https://api.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Stop()
//
//	resp, err := client.Get(ctx, "/widgets", url.Values{"page": {"1"}})
//
// Do and the method helpers work without Start. Start adds the background
// workers: cache cleanup, the connectivity monitor, queue replay on
// reconnect, and plugins.
//
// # Errors
//
// Failures are returned as *[APIError]. A mutation queued for later delivery
// fails with Code [CodeOfflineQueued] and matches [ErrOffline]:
//
//	_, err := client.Post(ctx, "/orders", body)
//	if errors.Is(err, reqguard.ErrOffline) {
//	    // shown to the user as "saved, will sync"
//	}
//
// # Persistence
//
// Cache entries and the offline queue live in a [KVStore]. The default is
// in-memory; pass [WithStore] with a file, SQLite or Redis store to keep them
// across restarts.
//
// # Authentication
//
// [WithTokenStore] adds a bearer token to every call and rotates it through
// the refresh endpoint when the backend answers 401. When the refresh token
// is gone or rejected, the [LoginPrompt] passed to [WithLoginPrompt] runs.
//
// # Lifecycle States
//
// A Client can be in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use [Client.Status] to
// query the current state.
//
// # Plugins
//
//	import "github.com/bft-labs/reqguard/plugins/queuereplay"
//	import "github.com/bft-labs/reqguard/plugins/configwatcher"
//
//	client, err := reqguard.New(cfg,
//	    queuereplay.WithQueueReplay(queuereplay.DefaultConfig()),
//	    configwatcher.WithConfigWatcher(watchCfg),
//	)
package reqguard
