// Package ports defines the interfaces (ports) that connect the request layer
// to infrastructure adapters.
//
// Ports are the boundaries between the recovery core and the outside world.
// They say what the core needs from external systems without saying how those
// needs are met.
//
// # Port Interfaces
//
//   - [Transport]: issues a call and returns a response or a *domain.Failure
//   - [KVStore]: durable per-origin key-value storage used by the response cache
//   - [Connectivity]: online/offline signal source
//   - [AuthRecovery]: token refresh / login prompt collaborator
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The core packages (classify, cache, queue, recovery, pipeline) depend only on
// these interfaces. Adapters under internal/adapters implement them with the
// file system, Redis, SQLite, net/http, and zerolog.
package ports
