package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/flagfinder/internal/model"
)

func newTestChain(t *testing.T, buf *bytes.Buffer) (chi.Router, *RateLimiter) {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{ScrapeRate: 1, ScrapeBurst: 1, CleanupInterval: time.Minute})
	t.Cleanup(rl.Stop)

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(newTestLogger(buf)))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewCORSMiddleware("http://localhost:3000"))
	r.Use(NewSessionMiddleware())
	r.Use(NewLoggingMiddleware(newTestLogger(buf), nil))

	r.Get("/api/check-auth", func(w http.ResponseWriter, r *http.Request) {
		_, ok := model.CredentialFromContext(r.Context())
		json.NewEncoder(w).Encode(map[string]bool{"authenticated": ok})
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	})
	r.Group(func(r chi.Router) {
		r.Use(rl.ScrapeMiddleware())
		r.Post("/api/scrape", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r, rl
}

// TestMiddlewareChain_SessionVisibleToHandler はCookieの認証情報がチェーン全体を通してハンドラーに届くことを検証する。
func TestMiddlewareChain_SessionVisibleToHandler(t *testing.T) {
	var buf bytes.Buffer
	router, _ := newTestChain(t, &buf)

	req := httptest.NewRequest(http.MethodGet, "/api/check-auth", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: "tok"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]bool
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !body["authenticated"] {
		t.Error("expected authenticated = true")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

// TestMiddlewareChain_RateLimitOnlyOnScrapeRoutes はレート制限が取得系ルートにだけ掛かることを検証する。
func TestMiddlewareChain_RateLimitOnlyOnScrapeRoutes(t *testing.T) {
	var buf bytes.Buffer
	router, _ := newTestChain(t, &buf)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scrape", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("scrape statuses = %v, want [200 429]", codes)
	}

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/check-auth", nil))
		if w.Code != http.StatusOK {
			t.Errorf("check-auth should not be rate limited, got %d", w.Code)
		}
	}
}

// TestMiddlewareChain_PanicReturnsUnifiedError はpanicが統一フォーマットの500になることを検証する。
func TestMiddlewareChain_PanicReturnsUnifiedError(t *testing.T) {
	var buf bytes.Buffer
	router, _ := newTestChain(t, &buf)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if !bytes.Contains(buf.Bytes(), []byte("panic recovered")) {
		t.Error("panic should be logged")
	}
}

// TestMiddlewareChain_PreflightShortCircuits はOPTIONSプリフライトが204で返ることを検証する。
func TestMiddlewareChain_PreflightShortCircuits(t *testing.T) {
	var buf bytes.Buffer
	router, rl := newTestChain(t, &buf)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/scrape", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if rl.LimiterCount() != 0 {
		t.Error("preflight should not consume a rate limit token")
	}
}

// TestMiddlewareChain_AccessLogCarriesSessionUserID はセッションCookieのユーザーIDがアクセスログに記録されることを検証する。
func TestMiddlewareChain_AccessLogCarriesSessionUserID(t *testing.T) {
	var buf bytes.Buffer
	router, _ := newTestChain(t, &buf)

	req := httptest.NewRequest(http.MethodGet, "/api/check-auth", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: "tok"})
	req.AddCookie(&http.Cookie{Name: UserIDCookieName, Value: "17841400000"})
	router.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogEntry(t, &buf)
	if entry["msg"] != "http_request" {
		t.Fatalf("msg = %v, want http_request", entry["msg"])
	}
	if entry["instagram_user_id"] != "17841400000" {
		t.Errorf("instagram_user_id = %v, want 17841400000", entry["instagram_user_id"])
	}
}
