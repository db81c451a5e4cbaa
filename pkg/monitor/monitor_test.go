package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// scriptedClient returns each result in order, then repeats the last one.
type scriptedClient struct {
	mu      sync.Mutex
	results []checkResult
	calls   int
}

type checkResult struct {
	valid bool
	err   error
}

func (c *scriptedClient) Check(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.results) {
		i = len(c.results) - 1
	}
	c.calls++
	r := c.results[i]
	return r.valid, r.err
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func repeat(r checkResult, n int) []checkResult {
	out := make([]checkResult, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func waitForLogout(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("monitor did not force logout in time")
	}
}

func TestMonitorForcesLogoutOnDefinitiveInvalid(t *testing.T) {
	client := &scriptedClient{results: []checkResult{{valid: false}}}
	logout := make(chan struct{})
	m := New(client, func() { close(logout) },
		WithIntervals(time.Millisecond, time.Millisecond))
	m.Start()
	defer m.Stop()

	waitForLogout(t, logout, time.Second)
	if got := client.callCount(); got != 1 {
		t.Errorf("checks before logout = %d, want 1", got)
	}
}

func TestMonitorToleratesTransientFailures(t *testing.T) {
	// Five transient failures, then the session checks out fine.
	results := append(repeat(checkResult{err: errors.New("dial tcp: timeout")}, 5), checkResult{valid: true})
	client := &scriptedClient{results: results}
	logoutCh := make(chan struct{}, 1)
	m := New(client, func() { logoutCh <- struct{}{} },
		WithIntervals(time.Millisecond, time.Millisecond))
	m.Start()
	defer m.Stop()

	deadline := time.After(time.Second)
	for client.callCount() < 7 {
		select {
		case <-deadline:
			t.Fatal("monitor stopped polling early")
		case <-time.After(time.Millisecond):
		}
	}
	select {
	case <-logoutCh:
		t.Fatal("monitor logged out despite recovery within tolerance")
	default:
	}
}

func TestMonitorForcesLogoutPastFailureTolerance(t *testing.T) {
	client := &scriptedClient{results: repeat(checkResult{err: errors.New("dial tcp: refused")}, 10)}
	logout := make(chan struct{})
	m := New(client, func() { close(logout) },
		WithIntervals(time.Millisecond, time.Millisecond))
	m.Start()
	defer m.Stop()

	waitForLogout(t, logout, time.Second)
	// Tolerates 5; the 6th consecutive failure forces the logout.
	if got := client.callCount(); got != 6 {
		t.Errorf("checks before forced logout = %d, want 6", got)
	}
}

func TestMonitorSuccessResetsFailureCount(t *testing.T) {
	results := append(repeat(checkResult{err: errors.New("flaky")}, 4), checkResult{valid: true})
	results = append(results, repeat(checkResult{err: errors.New("flaky")}, 6)...)
	client := &scriptedClient{results: results}
	logout := make(chan struct{})
	m := New(client, func() { close(logout) },
		WithIntervals(time.Millisecond, time.Millisecond))
	m.Start()
	defer m.Stop()

	waitForLogout(t, logout, time.Second)
	// 4 failures + 1 success + 6 fresh failures: the reset means the logout
	// lands on the 11th check, not the 6th.
	if got := client.callCount(); got != 11 {
		t.Errorf("checks before forced logout = %d, want 11", got)
	}
}

func TestMonitorStop(t *testing.T) {
	client := &scriptedClient{results: []checkResult{{valid: true}}}
	m := New(client, func() { t.Error("logout called on Stop") },
		WithIntervals(time.Millisecond, time.Millisecond))
	m.Start()
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	after := client.callCount()
	time.Sleep(20 * time.Millisecond)
	if got := client.callCount(); got != after {
		t.Errorf("checks continued after Stop: %d -> %d", after, got)
	}
	// Stop again is safe.
	m.Stop()
}

func TestHTTPClientCheck(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantValid bool
		wantErr   bool
	}{
		{"valid", http.StatusOK, true, false},
		{"unauthorized is definitive", http.StatusUnauthorized, false, false},
		{"gone is definitive", http.StatusGone, false, false},
		{"server error is transient", http.StatusInternalServerError, false, true},
		{"unavailable is transient", http.StatusServiceUnavailable, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/sessions/validate" {
					t.Errorf("path = %q, want /v1/sessions/validate", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
					t.Errorf("Authorization = %q, want Bearer tok-1", got)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, "tok-1", nil)
			valid, err := c.Check(context.Background())
			if valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", valid, tt.wantValid)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
