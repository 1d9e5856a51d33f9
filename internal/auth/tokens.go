// Package auth recovers from authentication failures by rotating tokens, and
// supplies credentials to the transport.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zalando/go-keyring"

	"github.com/bft-labs/reqguard/internal/domain"
)

// Tokens is the credential pair issued by the backend.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenStore persists Tokens.
type TokenStore interface {
	// Load returns domain.ErrNotFound when nothing is stored.
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, t Tokens) error
	Clear(ctx context.Context) error
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// ok is false for opaque tokens and tokens without exp.
func ExpiresAt(token string) (exp time.Time, ok bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether token carries an exp claim at or before now.
func Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	return ok && !now.Before(exp)
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	tokens *Tokens
}

// NewMemoryStore creates a store, optionally seeded.
func NewMemoryStore(initial *Tokens) *MemoryStore {
	s := &MemoryStore{}
	if initial != nil {
		cp := *initial
		s.tokens = &cp
	}
	return s
}

func (s *MemoryStore) Load(ctx context.Context) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return Tokens{}, domain.ErrNotFound
	}
	return *s.tokens, nil
}

func (s *MemoryStore) Save(ctx context.Context, t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = &t
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = nil
	return nil
}

// DefaultKeyringAccount is the account name tokens are stored under.
const DefaultKeyringAccount = "session"

// KeyringStore keeps tokens in the OS keyring as one JSON secret.
type KeyringStore struct {
	service string
	account string
}

// NewKeyringStore creates a store for service. An empty account uses DefaultKeyringAccount.
func NewKeyringStore(service, account string) *KeyringStore {
	if account == "" {
		account = DefaultKeyringAccount
	}
	return &KeyringStore{service: service, account: account}
}

func (s *KeyringStore) Load(ctx context.Context) (Tokens, error) {
	secret, err := keyring.Get(s.service, s.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return Tokens{}, domain.ErrNotFound
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("read keyring: %w", err)
	}
	var t Tokens
	if err := json.Unmarshal([]byte(secret), &t); err != nil {
		return Tokens{}, fmt.Errorf("decode tokens: %w", err)
	}
	return t, nil
}

func (s *KeyringStore) Save(ctx context.Context, t Tokens) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := keyring.Set(s.service, s.account, string(data)); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear(ctx context.Context) error {
	if err := keyring.Delete(s.service, s.account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keyring: %w", err)
	}
	return nil
}

// Authorizer supplies the bearer token from a TokenStore.
type Authorizer struct {
	store TokenStore
}

// NewAuthorizer creates an Authorizer over store.
func NewAuthorizer(store TokenStore) *Authorizer {
	return &Authorizer{store: store}
}

// Authorization returns "Bearer <access token>", or "" with no stored tokens.
func (a *Authorizer) Authorization(ctx context.Context) (string, error) {
	t, err := a.store.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if t.AccessToken == "" {
		return "", nil
	}
	return "Bearer " + t.AccessToken, nil
}
