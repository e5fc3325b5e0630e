package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewCommandContext(t *testing.T) {
	origTimeout := timeout
	defer func() { timeout = origTimeout }()

	timeout = 100 * time.Millisecond
	ctx, cancel := NewCommandContext(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected context to have a deadline")
	}
	if deadline.After(time.Now().Add(time.Second)) {
		t.Errorf("deadline too far in the future: %v", deadline)
	}

	timeout = 0
	ctx2, cancel2 := NewCommandContext(context.Background())
	defer cancel2()
	if _, ok := ctx2.Deadline(); ok {
		t.Error("expected no deadline when timeout is zero")
	}
}

func newAdminServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("state") == "FAILED" {
			w.Write([]byte(`[{"job_id":"order-1002","state":"FAILED","attempt_count":5,"failure_reason":"gave up after 5 attempts: boom","enqueued_at":"2024-01-15T10:30:00Z"}]`))
			return
		}
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/admin/session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"state":"PAIRING","pairing_code":"2@abc","changed_at":"2024-01-15T10:30:00Z"}`))
	})
	mux.HandleFunc("/admin/jobs/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"notification job not found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCommand(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	origServer, origJSON, origState := serverURL, jsonOutput, jobsState
	t.Cleanup(func() {
		serverURL, jsonOutput, jobsState = origServer, origJSON, origState
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--server", srv.URL))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestJobsCommand(t *testing.T) {
	srv := newAdminServer(t)

	out, err := runCommand(t, srv, "jobs", "--state", "failed")
	if err != nil {
		t.Fatalf("jobs failed: %v", err)
	}
	if !strings.Contains(out, "order-1002") || !strings.Contains(out, "gave up after 5 attempts") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = runCommand(t, srv, "jobs", "--state", "")
	if err != nil {
		t.Fatalf("jobs failed: %v", err)
	}
	if !strings.Contains(out, "No jobs found.") {
		t.Errorf("expected empty listing, got:\n%s", out)
	}
}

func TestJobsCommandNotFound(t *testing.T) {
	srv := newAdminServer(t)

	_, err := runCommand(t, srv, "jobs", "missing")
	if err == nil || !strings.Contains(err.Error(), "notification job not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestSessionCommand(t *testing.T) {
	srv := newAdminServer(t)

	out, err := runCommand(t, srv, "session", "--json=false")
	if err != nil {
		t.Fatalf("session failed: %v", err)
	}
	if !strings.Contains(out, "PAIRING") || !strings.Contains(out, "2@abc") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = runCommand(t, srv, "session", "--json")
	if err != nil {
		t.Fatalf("session --json failed: %v", err)
	}
	if !strings.Contains(out, `"pairing_code": "2@abc"`) {
		t.Errorf("expected indented JSON, got:\n%s", out)
	}
}
