package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bft-labs/reqguard/internal/cliconfig"
)

func TestBuildCall(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		params  []string
		headers []string
		data    string
		wantErr bool
		check   func(t *testing.T, got map[string]string, params map[string][]string, body string)
	}{
		{
			name:   "params and headers",
			method: "get",
			params: []string{"page=2", "tag=a", "tag=b"},
			headers: []string{
				"X-Trace: abc",
			},
			check: func(t *testing.T, h map[string]string, p map[string][]string, body string) {
				if h["X-Trace"] != "abc" {
					t.Errorf("headers = %v", h)
				}
				if len(p["tag"]) != 2 || p["page"][0] != "2" {
					t.Errorf("params = %v", p)
				}
			},
		},
		{
			name:   "data defaults to JSON",
			method: "post",
			data:   `{"a":1}`,
			check: func(t *testing.T, h map[string]string, p map[string][]string, body string) {
				if h["Content-Type"] != "application/json" || body != `{"a":1}` {
					t.Errorf("headers = %v, body = %q", h, body)
				}
			},
		},
		{name: "bad param", method: "get", params: []string{"oops"}, wantErr: true},
		{name: "bad header", method: "get", headers: []string{"novalue"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := buildCall(tt.method, "/x", tt.params, tt.headers, tt.data)
			if tt.wantErr {
				if err == nil {
					t.Error("buildCall() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildCall() error = %v", err)
			}
			if call.Method != strings.ToUpper(tt.method) {
				t.Errorf("Method = %q", call.Method)
			}
			tt.check(t, call.Headers, call.Params, string(call.Body))
		})
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	a := &app{cfg: cliconfig.DefaultConfig(), log: zerolog.New(io.Discard), out: &out}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func TestRequestCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/widgets" || r.URL.Query().Get("page") != "2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	out, err := run(t, "request", "GET", "/widgets", "--param", "page=2",
		"--base-url", srv.URL, "--store", "memory")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	if strings.TrimSpace(out) != `{"items":[]}` {
		t.Errorf("output = %q", out)
	}
}

func TestRequestCommand_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"sku required"}`))
	}))
	defer srv.Close()

	out, err := run(t, "request", "POST", "/orders", "--data", `{}`,
		"--base-url", srv.URL, "--store", "memory")
	if err == nil {
		t.Fatal("request expected an error for 422")
	}
	var body map[string]any
	if jsonErr := json.Unmarshal([]byte(out), &body); jsonErr != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if body["message"] != "sku required" || body["code"] != "CLIENT_ERROR" {
		t.Errorf("APIError output = %v", body)
	}
}

func TestQueueCommands_FileStore(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "queue", "list", "--base-url", "https://api.example.com",
		"--store", "file", "--state-dir", dir)
	if err != nil {
		t.Fatalf("queue list error = %v", err)
	}
	if strings.TrimSpace(out) != "null" && strings.TrimSpace(out) != "[]" {
		t.Errorf("queue list output = %q, want empty list", out)
	}

	out, err = run(t, "status", "--base-url", "https://api.example.com",
		"--store", "file", "--state-dir", dir, "--offline-mode", "offline")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, `"queue_length": 0`) || !strings.Contains(out, `"online": false`) {
		t.Errorf("status output = %s", out)
	}
}

func TestRootCommand_RequiresBaseURL(t *testing.T) {
	if _, err := run(t, "status", "--store", "memory"); err == nil {
		t.Error("status without base-url should fail")
	}
}
