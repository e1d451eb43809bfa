package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFixedWindowLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(2, time.Minute, func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow("a"); !ok {
			t.Fatalf("request %d should pass", i)
		}
	}
	ok, retry := limiter.Allow("a")
	if ok || retry != time.Minute {
		t.Fatalf("expected refusal with 1m retry, got %v %v", ok, retry)
	}
	if ok, _ := limiter.Allow("b"); !ok {
		t.Fatal("keys are limited independently")
	}

	now = now.Add(time.Minute)
	if ok, _ := limiter.Allow("a"); !ok {
		t.Fatal("window should reset")
	}
}

func TestNewRateLimiterDisabled(t *testing.T) {
	if newRateLimiter(0, time.Minute, nil) != nil {
		t.Fatal("expected nil limiter for zero limit")
	}
	called := false
	h := limitRequests(nil, clientIP, func(http.ResponseWriter, *http.Request) { called = true })
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("disabled limiter must pass requests through")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.4:5555"
	if got := clientIP(r); got != "198.51.100.4" {
		t.Fatalf("unexpected ip %q", got)
	}
	r.RemoteAddr = "198.51.100.4"
	if got := clientIP(r); got != "198.51.100.4" {
		t.Fatalf("unexpected ip without port %q", got)
	}
	if got := sessionKey(r); got != "ip:198.51.100.4" {
		t.Fatalf("unexpected session key %q", got)
	}
}
