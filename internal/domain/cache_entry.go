package domain

import "time"

// CacheEntry is a stored successful GET response.
type CacheEntry struct {
	Key        string            `json:"key"`
	Data       []byte            `json:"data"`
	StatusCode int               `json:"status_code"`
	StatusText string            `json:"status_text,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	StoredAt   time.Time         `json:"stored_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// ExpiredAt reports whether the entry is past its expiry at the given instant.
func (e *CacheEntry) ExpiredAt(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// TTL returns the remaining freshness at now, or 0 once expired.
func (e *CacheEntry) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Response converts the entry into a response tagged as served from cache.
func (e *CacheEntry) Response() *Response {
	headers := make(map[string]string, len(e.Headers))
	for k, v := range e.Headers {
		headers[k] = v
	}
	return &Response{
		Data:       append([]byte(nil), e.Data...),
		StatusCode: e.StatusCode,
		StatusText: e.StatusText,
		Headers:    headers,
		FromCache:  true,
	}
}

// QueueItem is a mutating call waiting for connectivity to return.
type QueueItem struct {
	ID         string    `json:"id"`
	Call       Call      `json:"call"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
}

// Age returns how long the item has been waiting at now.
func (q QueueItem) Age(now time.Time) time.Duration {
	return now.Sub(q.EnqueuedAt)
}
