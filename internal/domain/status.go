package domain

import "time"

// StatusReport is the observability snapshot of a running client.
type StatusReport struct {
	State        string     `json:"state"`
	Online       bool       `json:"online"`
	Mode         string     `json:"mode,omitempty"`
	QueueLength  int        `json:"queue_length"`
	OldestQueued *time.Time `json:"oldest_queued,omitempty"`
	CacheEntries int        `json:"cache_entries"`
}
