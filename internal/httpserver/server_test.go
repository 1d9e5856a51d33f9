package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bft-labs/reqguard/internal/domain"
)

type stubProvider struct {
	report domain.StatusReport
	items  []domain.QueueItem
}

func (s stubProvider) Report() domain.StatusReport      { return s.report }
func (s stubProvider) QueuedItems() []domain.QueueItem { return s.items }

func TestHandler_Status(t *testing.T) {
	p := stubProvider{report: domain.StatusReport{State: "Running", Online: false, Mode: "offline", QueueLength: 2, CacheEntries: 5}}
	srv := httptest.NewServer(NewServer(p, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got domain.StatusReport
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got != p.report {
		t.Errorf("report = %+v, want %+v", got, p.report)
	}
}

func TestHandler_Queue(t *testing.T) {
	p := stubProvider{items: []domain.QueueItem{{ID: "q1", Call: domain.Call{Method: "POST", URL: "/w"}}}}
	srv := httptest.NewServer(NewServer(p, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/queue")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got struct {
		Count int                `json:"count"`
		Items []domain.QueueItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 1 || got.Items[0].ID != "q1" || got.Items[0].Call.URL != "/w" {
		t.Errorf("queue = %+v", got)
	}
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(NewServer(stubProvider{}, nil).Handler())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Post(srv.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want 405", resp.StatusCode)
	}
}

func TestServeListener_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(stubProvider{}, nil).ServeListener(ctx, ln) }()

	deadline := time.Now().Add(time.Second)
	for {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeListener() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeListener() did not return after cancel")
	}
}
