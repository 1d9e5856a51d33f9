// Package domain contains the core types of the outbound request layer.
//
// This package is the innermost layer. It has no dependencies on transport,
// storage, or logging concerns and holds only value types and their rules.
//
// # Types
//
//   - [Call]: a serializable description of one outbound request
//   - [Response]: a successful (or cached) response
//   - [CacheEntry]: a stored GET response with an expiry
//   - [QueueItem]: a mutating call waiting for connectivity
//   - [Classification]: the projection of a failure used to pick a recovery action
//
// # Errors
//
// [Failure] is what a transport returns. [OfflineError] marks a mutation that was
// queued instead of sent. [APIError] is the normalized shape callers receive.
package domain
