package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/bft-labs/reqguard/internal/classify"
	"github.com/bft-labs/reqguard/internal/domain"
)

type staticAuth string

func (s staticAuth) Authorization(context.Context) (string, error) { return string(s), nil }

func TestTransport_Success(t *testing.T) {
	var gotMethod, gotQuery, gotAuth, gotBody, gotAttempt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotAttempt = r.Header.Get("X-Retry-Attempt")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL+"/api/", srv.Client(), WithAuthorizer(staticAuth("Bearer abc")))
	resp, err := tr.Do(context.Background(), domain.Call{
		Method:       "post",
		URL:          "widgets",
		Params:       url.Values{"dry": {"1"}},
		Body:         []byte(`{"name":"w"}`),
		RetryAttempt: 2,
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != 201 || string(resp.Data) != `{"id":7}` {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers = %v", resp.Headers)
	}
	if gotMethod != "POST" || gotQuery != "dry=1" || gotBody != `{"name":"w"}` {
		t.Errorf("server saw %s ?%s body %s", gotMethod, gotQuery, gotBody)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAttempt != "2" {
		t.Errorf("X-Retry-Attempt = %q", gotAttempt)
	}
}

func TestTransport_CallHeaderOverridesAuthorizer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, srv.Client(), WithAuthorizer(staticAuth("Bearer stale")))
	_, err := tr.Do(context.Background(), domain.Call{URL: "/x", Headers: map[string]string{"Authorization": "Bearer fresh"}})
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer fresh" {
		t.Errorf("Authorization = %q, want the call's header", gotAuth)
	}
}

func TestTransport_Non2xxIsFailureWithResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	_, err := NewTransport(srv.URL, srv.Client()).Do(context.Background(), domain.Call{URL: "/x"})

	var f *domain.Failure
	if !errors.As(err, &f) {
		t.Fatalf("error = %v, want Failure", err)
	}
	if f.Status() != 503 || string(f.Response.Data) != "maintenance" {
		t.Errorf("Failure = %+v", f)
	}
	if got := classify.Classify(err).Type; got != domain.ServerError {
		t.Errorf("Classify() = %s", got)
	}
}

func TestTransport_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := NewTransport(addr, nil).Do(context.Background(), domain.Call{URL: "/x"})

	var f *domain.Failure
	if !errors.As(err, &f) {
		t.Fatalf("error = %v, want Failure", err)
	}
	if !f.RequestSent || f.Aborted || f.Response != nil {
		t.Errorf("Failure flags = %+v", f)
	}
	if got := classify.Classify(err).Type; got != domain.NetworkError {
		t.Errorf("Classify() = %s", got)
	}
}

func TestTransport_TimeoutIsAborted(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := NewTransport(srv.URL, srv.Client(), WithTimeout(time.Hour))
	_, err := tr.Do(context.Background(), domain.Call{URL: "/slow", Timeout: 20 * time.Millisecond})

	var f *domain.Failure
	if !errors.As(err, &f) {
		t.Fatalf("error = %v, want Failure", err)
	}
	if !f.Aborted || f.RequestSent {
		t.Errorf("Failure flags = %+v", f)
	}
	if got := classify.Classify(err).Type; got != domain.TimeoutError {
		t.Errorf("Classify() = %s", got)
	}
}

func TestTransport_AbsoluteURL(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = r.URL.Path == "/direct"
	}))
	defer srv.Close()

	tr := NewTransport("http://unused.invalid", srv.Client())
	if _, err := tr.Do(context.Background(), domain.Call{URL: srv.URL + "/direct"}); err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("absolute URL not used as-is")
	}
}
