package domain

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Call describes one outbound request. It is plain data so it can be queued,
// persisted, and replayed later through whatever transport is current.
type Call struct {
	// Method is the HTTP method (GET, POST, ...). Empty means GET.
	Method string `json:"method"`

	// URL is the request path relative to the transport's base URL, or an absolute URL.
	URL string `json:"url"`

	// Params are query parameters.
	Params url.Values `json:"params,omitempty"`

	// Body is the raw request body.
	Body []byte `json:"body,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `json:"headers,omitempty"`

	// Timeout bounds this call. Zero uses the transport default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// CacheTTL overrides the cache's default freshness window for this call.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// RetryAttempt is set by the recovery coordinator on retry directives.
	RetryAttempt int `json:"retry_attempt,omitempty"`

	// StartedAt is stamped by the pipeline when the call is issued.
	StartedAt time.Time `json:"started_at,omitempty"`
}

// NormalizedMethod returns the upper-cased method, defaulting to GET.
func (c Call) NormalizedMethod() string {
	if c.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(c.Method)
}

// IsRead reports whether the call has no side effects (GET).
func (c Call) IsRead() bool {
	return c.NormalizedMethod() == http.MethodGet
}

// RequestKey identifies the call for retry tracking, ignoring query parameters.
func (c Call) RequestKey() string {
	return c.NormalizedMethod() + c.URL
}

// Clone returns a deep copy so a retry directive never aliases the caller's maps.
func (c Call) Clone() Call {
	out := c
	if c.Params != nil {
		out.Params = make(url.Values, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = append([]string(nil), v...)
		}
	}
	if c.Body != nil {
		out.Body = append([]byte(nil), c.Body...)
	}
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// Response is the result of a successful call, or of a recovery that served cached data.
type Response struct {
	Data       []byte            `json:"data"`
	StatusCode int               `json:"status_code"`
	StatusText string            `json:"status_text,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`

	// FromCache is true when the response was served by the response cache.
	FromCache bool `json:"from_cache,omitempty"`

	// IsStale is true when the response was served after retries were exhausted.
	IsStale bool `json:"is_stale,omitempty"`

	// Duration is the time from StartedAt to completion of the final attempt.
	Duration time.Duration `json:"duration,omitempty"`
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}
