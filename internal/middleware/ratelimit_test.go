package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newScrapeRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/scrape", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		ScrapeRate:      2,
		ScrapeBurst:     5,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.ScrapeMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newScrapeRequest("192.0.2.1:1234"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		ScrapeRate:      DefaultRateLimiterConfig(6).ScrapeRate,
		ScrapeBurst:     2,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.ScrapeMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newScrapeRequest("192.0.2.1:1234"))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Result().StatusCode)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newScrapeRequest("192.0.2.1:5678"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After is not an integer: %q", resp.Header.Get("Retry-After"))
	}
	if retryAfter != 10 {
		t.Errorf("Retry-After = %d, want 10", retryAfter)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "RATE_LIMITED" {
		t.Errorf("code = %q, want RATE_LIMITED", body.Code)
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		ScrapeRate:      1,
		ScrapeBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.ScrapeMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newScrapeRequest("192.0.2.1:1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first client: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newScrapeRequest("198.51.100.7:1"))
	if w.Code != http.StatusOK {
		t.Errorf("second client should have its own bucket, got %d", w.Code)
	}

	if got := rl.LimiterCount(); got != 2 {
		t.Errorf("LimiterCount = %d, want 2", got)
	}
}

func TestRateLimitMiddleware_IgnoresForwardedHeaders(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		ScrapeRate:      1,
		ScrapeBurst:     1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.ScrapeMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, fwd := range []string{"203.0.113.1", "203.0.113.2"} {
		req := newScrapeRequest("192.0.2.1:1")
		req.Header.Set("X-Forwarded-For", fwd)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if i == 1 && w.Code != http.StatusTooManyRequests {
			t.Errorf("spoofed X-Forwarded-For must not reset the limit, got %d", w.Code)
		}
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		ScrapeRate:      1,
		ScrapeBurst:     1,
		CleanupInterval: time.Hour,
	})
	defer rl.Stop()

	rl.getOrCreateLimiter("192.0.2.1")
	rl.mu.Lock()
	rl.limiters["192.0.2.1"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.mu.Unlock()
	rl.getOrCreateLimiter("192.0.2.2")

	rl.cleanup()

	if got := rl.LimiterCount(); got != 1 {
		t.Errorf("LimiterCount after cleanup = %d, want 1", got)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig(10))
	rl.Stop()
	rl.Stop()
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig(10)
	if cfg.ScrapeBurst != 10 {
		t.Errorf("ScrapeBurst = %d, want 10", cfg.ScrapeBurst)
	}
	if got, want := float64(cfg.ScrapeRate), 10.0/60.0; got != want {
		t.Errorf("ScrapeRate = %v, want %v", got, want)
	}

	if cfg := DefaultRateLimiterConfig(0); cfg.ScrapeBurst != 1 {
		t.Errorf("non-positive limits should clamp to 1, got burst %d", cfg.ScrapeBurst)
	}
}
