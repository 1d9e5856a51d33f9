package reqguard

import (
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/pipeline"
)

// Errors callers can match with errors.Is.
var (
	ErrOffline         = domain.ErrOffline
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
)

// CodeOfflineQueued is the APIError code for a mutation queued while offline.
const CodeOfflineQueued = pipeline.CodeOfflineQueued
