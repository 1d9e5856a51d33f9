package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"time"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/ports"
)

// DefaultTimeout bounds a call that sets no Timeout of its own.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 << 20

// Option configures a Transport.
type Option func(*Transport)

// WithTimeout sets the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// WithAuthorizer attaches credentials to every request.
func WithAuthorizer(a ports.Authorizer) Option {
	return func(t *Transport) { t.auth = a }
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(t *Transport) { t.logger = logAdapter.OrNoop(logger) }
}

// Transport implements ports.Transport over HTTP.
type Transport struct {
	baseURL string
	client  ports.HTTPClient
	timeout time.Duration
	auth    ports.Authorizer
	logger  ports.Logger
}

// NewTransport creates a transport that resolves relative call URLs against baseURL.
func NewTransport(baseURL string, client ports.HTTPClient, opts ...Option) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	t := &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: DefaultTimeout,
		logger:  logAdapter.NoopLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do sends call once. Non-2xx answers come back as a *domain.Failure carrying
// the response. Connection failures set RequestSent; timeouts and
// cancellations set Aborted.
func (t *Transport) Do(ctx context.Context, call domain.Call) (*domain.Response, error) {
	timeout := call.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target, err := t.resolve(call)
	if err != nil {
		return nil, &domain.Failure{Err: fmt.Errorf("build url: %w", err)}
	}

	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.NormalizedMethod(), target, body)
	if err != nil {
		return nil, &domain.Failure{Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "reqguard ("+runtime.GOOS+"/"+runtime.GOARCH+")")
	if len(call.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if call.RetryAttempt > 0 {
		req.Header.Set("X-Retry-Attempt", strconv.Itoa(call.RetryAttempt))
	}
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}
	if t.auth != nil && req.Header.Get("Authorization") == "" {
		value, err := t.auth.Authorization(ctx)
		if err != nil {
			t.logger.Warn("failed to load credentials", ports.Err(err))
		} else if value != "" {
			req.Header.Set("Authorization", value)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, t.sendFailure(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, t.sendFailure(ctx, fmt.Errorf("read response: %w", err))
	}

	out := &domain.Response{
		Data:       data,
		StatusCode: resp.StatusCode,
		StatusText: domain.StatusText(resp.StatusCode),
		Headers:    flatten(resp.Header),
	}
	if resp.StatusCode/100 != 2 {
		return nil, &domain.Failure{Response: out}
	}
	return out, nil
}

func (t *Transport) sendFailure(ctx context.Context, err error) *domain.Failure {
	var ne net.Error
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return &domain.Failure{Aborted: true, Err: fmt.Errorf("send request: %w", err)}
	}
	return &domain.Failure{RequestSent: true, Err: fmt.Errorf("send request: %w", err)}
}

func (t *Transport) resolve(call domain.Call) (string, error) {
	raw := call.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		if raw != "" && !strings.HasPrefix(raw, "/") {
			raw = "/" + raw
		}
		raw = t.baseURL + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(call.Params) > 0 {
		q := u.Query()
		for k, vs := range call.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
