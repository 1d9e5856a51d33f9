package recovery

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/bft-labs/reqguard/internal/adapters/memory"
	"github.com/bft-labs/reqguard/internal/cache"
	"github.com/bft-labs/reqguard/internal/domain"
	"github.com/bft-labs/reqguard/internal/ports"
	"github.com/bft-labs/reqguard/internal/queue"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

type fakeAuth struct {
	resp  *domain.Response
	err   error
	calls int
}

func (f *fakeAuth) HandleAuthError(_ context.Context, _ error, _ domain.Call) (*domain.Response, error) {
	f.calls++
	return f.resp, f.err
}

type fixture struct {
	cache  *cache.Cache
	queue  *queue.Queue
	sleeps *sleepRecorder
	coord  *Coordinator
	sent   int
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{sleeps: &sleepRecorder{}}
	f.cache = cache.New(ctx, cache.DefaultConfig(), memory.NewStore())
	replay := ports.TransportFunc(func(context.Context, domain.Call) (*domain.Response, error) {
		f.sent++
		return &domain.Response{StatusCode: 200}, nil
	})
	f.queue = queue.New(ctx, queue.DefaultConfig(), replay)
	opts = append([]Option{WithSleep(f.sleeps.Sleep)}, opts...)
	f.coord = New(DefaultConfig(), f.cache, f.queue, opts...)
	return f
}

func statusFailure(code int) error {
	return &domain.Failure{Response: &domain.Response{StatusCode: code}}
}

func networkFailure() error {
	return &domain.Failure{RequestSent: true, Err: errors.New("connection refused")}
}

func widgets() domain.Call {
	return domain.Call{Method: "GET", URL: "/widgets", Params: url.Values{"page": {"1"}}}
}

func TestOfflineGET_ServesFreshCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cache.Set(ctx, widgets(), &domain.Response{StatusCode: 200, Data: []byte("cached")})
	f.queue.SetOffline(ctx, true)

	out, err := f.coord.AttemptRecovery(ctx, networkFailure(), widgets())
	if err != nil {
		t.Fatalf("AttemptRecovery() error = %v", err)
	}
	if out.Kind != Resolve {
		t.Fatalf("Kind = %v, want resolve", out.Kind)
	}
	if !out.Response.FromCache || string(out.Response.Data) != "cached" {
		t.Errorf("Response = %+v", out.Response)
	}
	if f.sent != 0 {
		t.Errorf("network calls = %d, want 0", f.sent)
	}
}

func TestOfflinePOST_Queues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.queue.SetOffline(ctx, true)
	original := networkFailure()
	before := f.queue.Len()

	_, err := f.coord.AttemptRecovery(ctx, original, domain.Call{Method: "POST", URL: "/widgets"})

	var oe *domain.OfflineError
	if !errors.As(err, &oe) {
		t.Fatalf("error = %v, want OfflineError", err)
	}
	if !oe.IsOfflineError() || !IsOffline(err) {
		t.Error("IsOfflineError() = false")
	}
	if !errors.Is(err, domain.ErrOffline) || !errors.Is(err, original) {
		t.Error("OfflineError should unwrap to ErrOffline and the original failure")
	}
	if f.queue.Len() != before+1 {
		t.Errorf("queue length = %d, want %d", f.queue.Len(), before+1)
	}
	if oe.QueueID != f.queue.Items()[0].ID {
		t.Errorf("QueueID = %s, queued ID = %s", oe.QueueID, f.queue.Items()[0].ID)
	}
}

func TestNetworkErrorOnline_QueuesMutation(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.AttemptRecovery(context.Background(), networkFailure(), domain.Call{Method: "DELETE", URL: "/widgets/1"})
	if !IsOffline(err) {
		t.Fatalf("error = %v, want OfflineError", err)
	}
	if f.queue.Len() != 1 {
		t.Errorf("queue length = %d, want 1", f.queue.Len())
	}
}

func TestOfflineGET_MissFallsThroughToRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	out, err := f.coord.AttemptRecovery(ctx, networkFailure(), widgets())
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != Retry {
		t.Errorf("Kind = %v, want retry", out.Kind)
	}
	if f.queue.Len() != 0 {
		t.Error("GET was queued")
	}
}

func TestServerErrors_RetryThenPropagate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	call := widgets()

	for i := 1; i <= DefaultMaxRetries; i++ {
		out, err := f.coord.AttemptRecovery(ctx, statusFailure(500), call)
		if err != nil {
			t.Fatalf("attempt %d: error = %v", i, err)
		}
		if out.Kind != Retry {
			t.Fatalf("attempt %d: Kind = %v, want retry", i, out.Kind)
		}
		if out.Call.RetryAttempt != i {
			t.Errorf("attempt %d: RetryAttempt = %d", i, out.Call.RetryAttempt)
		}
		if got := f.coord.Attempts(call); got != i || got > DefaultMaxRetries {
			t.Errorf("attempt %d: Attempts() = %d", i, got)
		}
		call = out.Call
	}

	out, err := f.coord.AttemptRecovery(ctx, statusFailure(500), call)
	if err != nil || out.Kind != Propagate {
		t.Fatalf("after cap: Kind = %v, err = %v, want propagate", out.Kind, err)
	}
	if out.Classification.Type != domain.ServerError {
		t.Errorf("Type = %s", out.Classification.Type)
	}
	if f.coord.Attempts(call) != 0 {
		t.Errorf("counter not cleared at cap: %d", f.coord.Attempts(call))
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(f.sleeps.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", f.sleeps.delays, want)
	}
	for i := range want {
		if f.sleeps.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, f.sleeps.delays[i], want[i])
		}
	}
}

func TestServerErrors_StaleFallbackAfterCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cache.Set(ctx, widgets(), &domain.Response{StatusCode: 200, Data: []byte("last-known")})

	var out Outcome
	for i := 0; i <= DefaultMaxRetries; i++ {
		var err error
		out, err = f.coord.AttemptRecovery(ctx, statusFailure(503), widgets())
		if err != nil {
			t.Fatal(err)
		}
	}
	if out.Kind != Resolve {
		t.Fatalf("Kind = %v, want resolve", out.Kind)
	}
	if !out.Response.IsStale || !out.Response.FromCache {
		t.Errorf("flags = fromCache:%v isStale:%v", out.Response.FromCache, out.Response.IsStale)
	}
	if string(out.Response.Data) != "last-known" {
		t.Errorf("Data = %s", out.Response.Data)
	}
}

func TestNetworkErrors_StaleFallbackForExpiredEntry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t)
	f.cache = cache.New(ctx, cache.DefaultConfig(), memory.NewStore(), cache.WithClock(func() time.Time { return now }))
	f.coord = New(DefaultConfig(), f.cache, f.queue, WithSleep(f.sleeps.Sleep))

	f.cache.Set(ctx, widgets(), &domain.Response{StatusCode: 200, Data: []byte("last-known")})
	now = now.Add(cache.DefaultTTL + time.Minute)

	var out Outcome
	for i := 0; i <= DefaultMaxRetries; i++ {
		var err error
		out, err = f.coord.AttemptRecovery(ctx, networkFailure(), widgets())
		if err != nil {
			t.Fatal(err)
		}
		if i < DefaultMaxRetries && out.Kind != Retry {
			t.Fatalf("attempt %d: Kind = %v, want retry", i, out.Kind)
		}
	}
	if out.Kind != Resolve {
		t.Fatalf("Kind = %v, want resolve", out.Kind)
	}
	if !out.Response.IsStale || string(out.Response.Data) != "last-known" {
		t.Errorf("Response = %+v", out.Response)
	}
	if f.cache.Size() != 1 {
		t.Errorf("cache Size() = %d, want expired entry kept", f.cache.Size())
	}
}

func TestBackoffBeyondTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 5
	sleeps := &sleepRecorder{}
	c := New(cfg, nil, nil, WithSleep(sleeps.Sleep))

	for i := 0; i < 5; i++ {
		if out, _ := c.AttemptRecovery(context.Background(), statusFailure(502), widgets()); out.Kind != Retry {
			t.Fatalf("attempt %d: Kind = %v", i, out.Kind)
		}
	}
	if got := sleeps.delays[3:]; got[0] != time.Second || got[1] != time.Second {
		t.Errorf("delays beyond table = %v, want 1s", got)
	}
}

func TestNonRecoverablePropagates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorType
	}{
		{"forbidden", statusFailure(403), domain.AuthorizationError},
		{"bad request", statusFailure(422), domain.ClientError},
		{"cors", errors.New("blocked by CORS policy"), domain.CORSError},
		{"unknown", errors.New("boom"), domain.UnknownError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			out, err := f.coord.AttemptRecovery(context.Background(), tt.err, domain.Call{Method: "PUT", URL: "/x"})
			if err != nil || out.Kind != Propagate {
				t.Errorf("Kind = %v, err = %v", out.Kind, err)
			}
			if out.Classification.Type != tt.want {
				t.Errorf("Type = %s, want %s", out.Classification.Type, tt.want)
			}
			if len(f.sleeps.delays) != 0 {
				t.Error("non-recoverable failure was retried")
			}
		})
	}
}

func TestAuthenticationRecovery(t *testing.T) {
	refreshed := &domain.Response{StatusCode: 200, Data: []byte("again")}
	tests := []struct {
		name string
		auth *fakeAuth
		url  string
		want Kind
	}{
		{"refreshed", &fakeAuth{resp: refreshed}, "/widgets", Resolve},
		{"login prompted", &fakeAuth{}, "/widgets", Handled},
		{"current user lookup swallowed", &fakeAuth{err: errors.New("refresh failed")}, DefaultCurrentUserPath, Handled},
		{"failure elsewhere", &fakeAuth{err: errors.New("refresh failed")}, "/widgets", Propagate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, WithAuthRecovery(tt.auth))
			out, err := f.coord.AttemptRecovery(context.Background(), statusFailure(401), domain.Call{URL: tt.url})
			if err != nil {
				t.Fatal(err)
			}
			if out.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", out.Kind, tt.want)
			}
			if tt.auth.calls != 1 {
				t.Errorf("auth calls = %d, want 1", tt.auth.calls)
			}
			if tt.want == Resolve && out.Response != refreshed {
				t.Error("refreshed response not returned")
			}
		})
	}
}

func TestAuthenticationWithoutCollaborator(t *testing.T) {
	f := newFixture(t)
	out, err := f.coord.AttemptRecovery(context.Background(), statusFailure(401), widgets())
	if err != nil || out.Kind != Propagate {
		t.Errorf("Kind = %v, err = %v, want propagate", out.Kind, err)
	}
	if len(f.sleeps.delays) != 0 {
		t.Error("401 was retried")
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.coord.AttemptRecovery(ctx, statusFailure(500), widgets())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if out.Kind != Propagate {
		t.Errorf("Kind = %v, want propagate", out.Kind)
	}
	if f.coord.Attempts(widgets()) != 0 {
		t.Error("counter not cleared after cancelled wait")
	}
}

func TestResetRetries(t *testing.T) {
	f := newFixture(t)
	f.coord.AttemptRecovery(context.Background(), statusFailure(500), widgets())
	if f.coord.Attempts(widgets()) != 1 {
		t.Fatalf("Attempts() = %d, want 1", f.coord.Attempts(widgets()))
	}

	other := widgets()
	other.Params = url.Values{"page": {"2"}}
	if f.coord.Attempts(other) != 1 {
		t.Error("request key should ignore query parameters")
	}

	f.coord.ResetRetries(widgets())
	if f.coord.Attempts(widgets()) != 0 {
		t.Error("ResetRetries() did not clear the counter")
	}
}
