package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestTransport(t *testing.T, url string) *Transport {
	t.Helper()
	tr, err := New(Config{BaseURL: url, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tr
}

func TestGetSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[1,2,3]}`))
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	resp, err := tr.Get(context.Background(), "/api/v1/tables/mortality/versions/v1/data", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestRetryThen404NoThirdRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1, 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	start := time.Now()
	_, err := tr.Get(context.Background(), "/x", nil)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	// Two waits (1s + 2s) are expected before the terminal 404.
	if elapsed < 3*time.Second {
		t.Errorf("elapsed = %v, want >= 3s (1s + 2s backoff observed)", elapsed)
	}
}

func TestNonRetryable4xxFailsFast(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	_, err := tr.Get(context.Background(), "/x", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 401)", got)
	}
}

func TestStatusMessages(t *testing.T) {
	cases := map[int]string{
		http.StatusUnauthorized: "authentication failed",
		http.StatusForbidden:    "access denied",
		http.StatusNotFound:     "resource not found",
		http.StatusBadGateway:   "server error",
	}
	for status, want := range cases {
		if got := statusMessage(status); got != want {
			t.Errorf("statusMessage(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	retry := []int{408, 429, 500, 502, 503, 599}
	noRetry := []int{200, 201, 301, 400, 401, 403, 404}

	for _, status := range retry {
		if !shouldRetry(status) {
			t.Errorf("shouldRetry(%d) = false, want true", status)
		}
	}
	for _, status := range noRetry {
		if shouldRetry(status) {
			t.Errorf("shouldRetry(%d) = true, want false", status)
		}
	}
}
