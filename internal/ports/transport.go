package ports

import (
	"context"

	"github.com/bft-labs/reqguard/internal/domain"
)

// Transport issues a single call.
type Transport interface {
	// Do performs the call once, without recovery.
	// A non-2xx answer or a connection problem is returned as a *domain.Failure.
	Do(ctx context.Context, call domain.Call) (*domain.Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, call domain.Call) (*domain.Response, error)

// Do calls f(ctx, call).
func (f TransportFunc) Do(ctx context.Context, call domain.Call) (*domain.Response, error) {
	return f(ctx, call)
}

// AuthRecovery handles authentication failures (token refresh, login prompt).
type AuthRecovery interface {
	// HandleAuthError tries to recover from a 401.
	// A non-nil response resolves the original call. A nil response with a nil
	// error means the failure was handled (for example a login prompt was shown)
	// and nothing more should happen.
	HandleAuthError(ctx context.Context, failure error, call domain.Call) (*domain.Response, error)
}

// Authorizer supplies the Authorization header for outgoing requests.
type Authorizer interface {
	// Authorization returns the header value, or "" when no credentials are held.
	Authorization(ctx context.Context) (string, error)
}
