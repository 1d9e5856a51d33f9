package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/ports"
)

// DefaultRefreshPath is where refresh tokens are exchanged.
const DefaultRefreshPath = "/auth/refresh"

// LoginPrompt is called when the session cannot be recovered and the user
// must sign in again.
type LoginPrompt func(ctx context.Context, reason string)

// Option configures a Refresher.
type Option func(*Refresher)

// WithRefreshPath overrides DefaultRefreshPath.
func WithRefreshPath(path string) Option {
	return func(r *Refresher) {
		if path != "" {
			r.refreshPath = path
		}
	}
}

// WithLoginPrompt sets the callback for unrecoverable sessions.
func WithLoginPrompt(prompt LoginPrompt) Option {
	return func(r *Refresher) { r.prompt = prompt }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(r *Refresher) { r.logger = logAdapter.OrNoop(logger) }
}

// Refresher implements ports.AuthRecovery with refresh-token rotation.
type Refresher struct {
	store       TokenStore
	transport   ports.Transport
	refreshPath string
	prompt      LoginPrompt
	now         func() time.Time
	logger      ports.Logger

	mu sync.Mutex
}

// NewRefresher creates a Refresher that exchanges tokens through transport.
func NewRefresher(store TokenStore, transport ports.Transport, opts ...Option) *Refresher {
	r := &Refresher{
		store:       store,
		transport:   transport,
		refreshPath: DefaultRefreshPath,
		prompt:      func(context.Context, string) {},
		now:         time.Now,
		logger:      logAdapter.NoopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleAuthError refreshes the session and re-issues call with the new
// access token. It returns (nil, nil) after prompting for a login.
func (r *Refresher) HandleAuthError(ctx context.Context, failure error, call domain.Call) (*domain.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if call.URL == r.refreshPath {
		return r.loginRequired(ctx, "refresh endpoint rejected credentials")
	}

	tokens, err := r.store.Load(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	if tokens.RefreshToken == "" {
		return r.loginRequired(ctx, "no refresh token")
	}
	if Expired(tokens.RefreshToken, r.now()) {
		return r.loginRequired(ctx, "refresh token expired")
	}

	fresh, err := r.refresh(ctx, tokens)
	if err != nil {
		var f *domain.Failure
		if errors.As(err, &f) && f.Response != nil && f.Status() >= 400 && f.Status() < 500 {
			return r.loginRequired(ctx, "refresh token rejected")
		}
		return nil, fmt.Errorf("refresh tokens: %w", err)
	}
	if err := r.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("save tokens: %w", err)
	}
	r.logger.Info("access token refreshed")

	return r.reissue(ctx, call, fresh.AccessToken)
}

func (r *Refresher) refresh(ctx context.Context, tokens Tokens) (Tokens, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": tokens.RefreshToken})
	if err != nil {
		return Tokens{}, err
	}
	resp, err := r.transport.Do(ctx, domain.Call{
		Method: http.MethodPost,
		URL:    r.refreshPath,
		Body:   body,
	})
	if err != nil {
		return Tokens{}, err
	}

	var fresh Tokens
	if err := json.Unmarshal(resp.Data, &fresh); err != nil {
		return Tokens{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if fresh.AccessToken == "" {
		return Tokens{}, errors.New("refresh response has no access_token")
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tokens.RefreshToken
	}
	return fresh, nil
}

func (r *Refresher) reissue(ctx context.Context, call domain.Call, access string) (*domain.Response, error) {
	retry := call.Clone()
	if retry.Headers == nil {
		retry.Headers = make(map[string]string, 1)
	}
	retry.Headers["Authorization"] = "Bearer " + access
	return r.transport.Do(ctx, retry)
}

func (r *Refresher) loginRequired(ctx context.Context, reason string) (*domain.Response, error) {
	if err := r.store.Clear(ctx); err != nil {
		r.logger.Warn("failed to clear tokens", ports.Err(err))
	}
	r.logger.Warn("login required", ports.String("reason", reason))
	r.prompt(ctx, reason)
	return nil, nil
}
