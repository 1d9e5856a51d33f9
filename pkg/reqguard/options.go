package reqguard

import (
	"context"
	"net/http"
	"time"

	"github.com/bft-labs/reqguard/internal/auth"
	"github.com/bft-labs/reqguard/internal/connectivity"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/ports"
)

// Re-exported types so callers need not import internal packages.
type (
	Call         = domain.Call
	Response     = domain.Response
	APIError     = domain.APIError
	OfflineError = domain.OfflineError
	Failure      = domain.Failure
	QueueItem    = domain.QueueItem
	StatusReport = domain.StatusReport

	HTTPClient   = ports.HTTPClient
	Logger       = ports.Logger
	LogField     = ports.Field
	Transport    = ports.Transport
	KVStore      = ports.KVStore
	Connectivity = ports.Connectivity
	AuthRecovery = ports.AuthRecovery

	ManualConnectivity = connectivity.Manual

	TokenStore  = auth.TokenStore
	Tokens      = auth.Tokens
	LoginPrompt = auth.LoginPrompt
)

// NewManualConnectivity returns a Connectivity source switched by hand with Set.
func NewManualConnectivity(online bool) *ManualConnectivity {
	return connectivity.NewManual(online)
}

// Option configures optional behavior of a Client.
type Option func(*options)

type options struct {
	httpClient   ports.HTTPClient
	transport    ports.Transport
	store        ports.KVStore
	connectivity ports.Connectivity
	authRecovery ports.AuthRecovery
	tokenStore   auth.TokenStore
	loginPrompt  auth.LoginPrompt
	logger       ports.Logger
	eventHandler EventHandler
	plugins      []Plugin
	retrySleep   func(ctx context.Context, d time.Duration) error
	replaySleep  func(ctx context.Context, d time.Duration) error
}

// The default client carries no Timeout; each call is bounded by the
// transport's context deadline.
func defaultOptions() options {
	return options{
		httpClient: &http.Client{},
	}
}

// WithHTTPClient sets the HTTP client used by the default transport and the
// connectivity probe.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) { o.httpClient = client }
}

// WithTransport replaces the HTTP transport entirely.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithStore sets the durable store for cache entries and the offline queue.
// Default: in-memory (nothing survives a restart).
func WithStore(store KVStore) Option {
	return func(o *options) { o.store = store }
}

// WithConnectivity replaces the probing monitor with another source.
func WithConnectivity(c Connectivity) Option {
	return func(o *options) { o.connectivity = c }
}

// WithAuthRecovery sets a custom handler for authentication failures.
// It takes precedence over WithTokenStore.
func WithAuthRecovery(a AuthRecovery) Option {
	return func(o *options) { o.authRecovery = a }
}

// WithTokenStore enables bearer credentials and refresh-token rotation.
func WithTokenStore(store TokenStore) Option {
	return func(o *options) { o.tokenStore = store }
}

// WithLoginPrompt sets the callback run when the session cannot be refreshed.
func WithLoginPrompt(prompt LoginPrompt) Option {
	return func(o *options) { o.loginPrompt = prompt }
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEventHandler sets a handler for client events.
// Events are called synchronously; implementations should return quickly.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) { o.eventHandler = handler }
}

// WithPlugin registers a plugin to be initialized when the client starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) { o.plugins = append(o.plugins, plugin) }
}
