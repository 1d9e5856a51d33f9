// Package pipeline wraps a transport with caching, recovery and error
// normalization. It is the entry point application code calls.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	logAdapter "github.com/bft-labs/reqguard/internal/adapters/log"
	"github.com/bft-labs/reqguard/internal/cache"
	"github.com/bft-labs/reqguard/internal/classify"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/metrics"
	"github.com/bft-labs/reqguard/internal/ports"
	"github.com/bft-labs/reqguard/internal/recovery"
)

// CodeOfflineQueued is the APIError code for a mutation queued while offline.
const CodeOfflineQueued = "OFFLINE_QUEUED"

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(p *Pipeline) { p.logger = logAdapter.OrNoop(logger) }
}

// Pipeline issues calls through a transport and recovers from failures.
type Pipeline struct {
	transport ports.Transport
	cache     *cache.Cache
	coord     *recovery.Coordinator
	now       func() time.Time
	logger    ports.Logger
}

// New creates a pipeline. c may be nil to disable caching.
func New(transport ports.Transport, c *cache.Cache, coord *recovery.Coordinator, opts ...Option) *Pipeline {
	p := &Pipeline{
		transport: transport,
		cache:     c,
		coord:     coord,
		now:       time.Now,
		logger:    logAdapter.NoopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Do issues call. It returns a response (possibly cached or stale, see the
// response flags) or a *domain.APIError.
func (p *Pipeline) Do(ctx context.Context, call domain.Call) (*domain.Response, error) {
	if call.StartedAt.IsZero() {
		call.StartedAt = p.now()
	}
	method := call.NormalizedMethod()

	resp, err := p.transport.Do(ctx, call)
	if err == nil {
		if p.coord != nil {
			p.coord.ResetRetries(call)
		}
		if p.cache != nil {
			p.cache.Set(ctx, call, resp)
		}
		p.finish(call, resp)
		metrics.RecordRequest(method, "success")
		return resp, nil
	}

	if p.coord == nil {
		metrics.RecordRequest(method, "failed")
		return nil, Normalize(err, classify.Classify(err))
	}

	out, recErr := p.coord.AttemptRecovery(ctx, err, call)
	if out.Kind != recovery.Retry {
		p.coord.ResetRetries(call)
	}
	if recErr != nil {
		var oe *domain.OfflineError
		if errors.As(recErr, &oe) {
			metrics.RecordRequest(method, "queued")
			apiErr := domain.NewAPIError("request queued until connectivity returns", 0, CodeOfflineQueued, map[string]string{"queue_id": oe.QueueID}, oe)
			apiErr.Offline = true
			return nil, apiErr
		}
		metrics.RecordRequest(method, "failed")
		return nil, Normalize(err, out.Classification)
	}

	switch out.Kind {
	case recovery.Retry:
		return p.Do(ctx, out.Call)
	case recovery.Resolve:
		if !out.Response.FromCache && p.cache != nil {
			p.cache.Set(ctx, call, out.Response)
		}
		p.finish(call, out.Response)
		outcome := "recovered"
		if out.Response.IsStale {
			outcome = "stale"
		} else if out.Response.FromCache {
			outcome = "cached"
		}
		metrics.RecordRequest(method, outcome)
		return out.Response, nil
	case recovery.Handled:
		metrics.RecordRequest(method, "handled")
		apiErr := Normalize(err, out.Classification)
		apiErr.Code = string(domain.AuthenticationError)
		if apiErr.Status == 0 {
			apiErr.Status = http.StatusUnauthorized
		}
		apiErr.Handled = true
		return nil, apiErr
	default:
		metrics.RecordRequest(method, "failed")
		p.logger.Debug("request failed",
			ports.String("method", method),
			ports.String("url", call.URL),
			ports.String("type", string(out.Classification.Type)),
			ports.Err(err),
		)
		return nil, Normalize(err, out.Classification)
	}
}

// Get issues a GET.
func (p *Pipeline) Get(ctx context.Context, path string, params url.Values) (*domain.Response, error) {
	return p.Do(ctx, domain.Call{Method: http.MethodGet, URL: path, Params: params})
}

// Post issues a POST with body.
func (p *Pipeline) Post(ctx context.Context, path string, body []byte) (*domain.Response, error) {
	return p.Do(ctx, domain.Call{Method: http.MethodPost, URL: path, Body: body})
}

// Put issues a PUT with body.
func (p *Pipeline) Put(ctx context.Context, path string, body []byte) (*domain.Response, error) {
	return p.Do(ctx, domain.Call{Method: http.MethodPut, URL: path, Body: body})
}

// Patch issues a PATCH with body.
func (p *Pipeline) Patch(ctx context.Context, path string, body []byte) (*domain.Response, error) {
	return p.Do(ctx, domain.Call{Method: http.MethodPatch, URL: path, Body: body})
}

// Delete issues a DELETE.
func (p *Pipeline) Delete(ctx context.Context, path string) (*domain.Response, error) {
	return p.Do(ctx, domain.Call{Method: http.MethodDelete, URL: path})
}

func (p *Pipeline) finish(call domain.Call, resp *domain.Response) {
	if resp != nil {
		resp.Duration = p.now().Sub(call.StartedAt)
	}
}

// Normalize converts a transport failure into the error callers see. A JSON
// error body's "message" and "code" fields take precedence; the decoded body
// becomes Details.
func Normalize(err error, cl domain.Classification) *domain.APIError {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	message := err.Error()
	code := string(cl.Type)
	status := 0
	var details any

	var f *domain.Failure
	if errors.As(err, &f) && f.Response != nil {
		status = f.Response.StatusCode
		if len(f.Response.Data) > 0 {
			var body map[string]any
			if json.Unmarshal(f.Response.Data, &body) == nil {
				details = body
				if m, ok := body["message"].(string); ok && m != "" {
					message = m
				}
				if c, ok := body["code"].(string); ok && c != "" {
					code = c
				}
			} else {
				details = string(f.Response.Data)
			}
		}
	}
	if code == "" {
		code = string(domain.UnknownError)
	}
	return domain.NewAPIError(message, status, code, details, err)
}
