package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(Requests.WithLabelValues("GET", "success"))
	RecordRequest("GET", "success")
	after := testutil.ToFloat64(Requests.WithLabelValues("GET", "success"))
	if after != before+1 {
		t.Errorf("requests counter = %v, want %v", after, before+1)
	}
}

func TestGauges(t *testing.T) {
	SetQueueLength(7)
	if got := testutil.ToFloat64(QueueLength); got != 7 {
		t.Errorf("queue length gauge = %v, want 7", got)
	}
	SetCacheEntries(3)
	if got := testutil.ToFloat64(CacheEntries); got != 3 {
		t.Errorf("cache entries gauge = %v, want 3", got)
	}
	SetOnline(false)
	if got := testutil.ToFloat64(Online); got != 0 {
		t.Errorf("online gauge = %v, want 0", got)
	}
	SetOnline(true)
	if got := testutil.ToFloat64(Online); got != 1 {
		t.Errorf("online gauge = %v, want 1", got)
	}
}
