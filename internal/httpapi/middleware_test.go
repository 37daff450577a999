package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"enlace.org/internal/ratelimit"
)

func TestRateLimitFixedWindow(t *testing.T) {
	current := time.Now()
	limiter := ratelimit.NewMemoryLimiter(ratelimit.WithClock(func() time.Time { return current }))
	handler := RateLimit(limiter, 2, time.Minute)(okHandler())

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "203.0.113.9:4711"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := get(); rec.Code != http.StatusOK {
		t.Fatalf("first request: status %d", rec.Code)
	}
	if rec := get(); rec.Code != http.StatusOK {
		t.Fatalf("second request: status %d", rec.Code)
	}

	rec := get()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d, want 429", rec.Code)
	}
	if rec.Header().Get("RateLimit-Limit") != "2" || rec.Header().Get("RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected rate limit headers: %v", rec.Header())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 429")
	}

	// A fresh window admits the client again.
	current = current.Add(2 * time.Minute)
	if rec := get(); rec.Code != http.StatusOK {
		t.Fatalf("after window reset: status %d", rec.Code)
	}
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter()
	handler := RateLimit(limiter, 1, time.Minute)(okHandler())

	get := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := get("203.0.113.9:1"); code != http.StatusOK {
		t.Fatalf("first client: status %d", code)
	}
	if code := get("203.0.113.9:2"); code != http.StatusTooManyRequests {
		t.Fatalf("same IP, new port: status %d, want 429", code)
	}
	if code := get("198.51.100.7:1"); code != http.StatusOK {
		t.Fatalf("different client: status %d", code)
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("backend unavailable")
}

func TestRateLimitFailsOpen(t *testing.T) {
	handler := RateLimit(brokenLimiter{}, 1, time.Minute)(okHandler())
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, broken limiter must not block", i, rec.Code)
		}
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen == "" {
		t.Fatal("expected a generated request id on the context")
	}
	if rec.Header().Get("X-Request-Id") != seen {
		t.Fatalf("header %q does not match context id %q", rec.Header().Get("X-Request-Id"), seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "client-supplied-id" {
		t.Fatalf("client id not honored, got %q", seen)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := CORS([]string{"https://enlace.example"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://enlace.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://enlace.example" {
		t.Fatalf("configured origin not allowed: %v", rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unlisted origin must not be reflected")
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatal("localhost origin should be allowed during development")
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the next handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: status %d, want 204", rec.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("clientIP = %q, want first forwarded hop", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q, want remote host", got)
	}
}

func TestMaxBodyBytesRejectsOversizedBody(t *testing.T) {
	env := newTestEnv(t)

	big := make([]byte, 2<<20)
	for i := range big {
		big[i] = 'a'
	}
	rec := env.do(http.MethodPost, "/auth/login", "", map[string]any{
		"username": string(big),
		"password": "p@ss1234",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized body: status %d, want 400", rec.Code)
	}
}
