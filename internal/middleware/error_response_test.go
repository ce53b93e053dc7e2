package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/flagfinder/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

// TestWriteErrorResponse_DomainErrors はドメインエラーがそのままJSON本文になることを検証する。
func TestWriteErrorResponse_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    *model.APIError
	}{
		{"unauthenticated", http.StatusUnauthorized, model.NewUnauthenticatedError()},
		{"invalid signature", http.StatusForbidden, model.NewInvalidSignatureError()},
		{"invalid username", http.StatusBadRequest, model.NewInvalidUsernameError("bad name")},
		{"analysis not found", http.StatusNotFound, model.NewAnalysisNotFoundError("abc")},
		{"scrape timeout", http.StatusGatewayTimeout, model.NewScrapeTimeoutError()},
		{"upstream failed", http.StatusInternalServerError, model.NewUpstreamFailedError()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.status, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}

			want := ErrorResponseBody{Code: tt.err.Code, Message: tt.err.Message, Category: tt.err.Category, Action: tt.err.Action}
			if got := decodeErrorBody(t, w); got != want {
				t.Errorf("body = %+v, want %+v", got, want)
			}
		})
	}
}

// TestWriteErrorResponse_UnauthenticatedCodeForLoginRedirect はフロントエンドがログイン遷移に使うcodeを返すことを検証する。
func TestWriteErrorResponse_UnauthenticatedCodeForLoginRedirect(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())

	var raw map[string]string
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if raw["code"] != "UNAUTHENTICATED" {
		t.Errorf("code = %q, want UNAUTHENTICATED", raw["code"])
	}
	for _, field := range []string{"message", "category", "action"} {
		if raw[field] == "" {
			t.Errorf("%s should not be empty", field)
		}
	}
}

// TestWriteErrorResponse_NilErrorBecomesInternal はnilのAPIErrorを500として書き込むことを検証する。
func TestWriteErrorResponse_NilErrorBecomesInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusBadRequest, nil)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if got := decodeErrorBody(t, w); got.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", got.Code, model.ErrCodeInternal)
	}
}

// TestWriteInternalServerError_MatchesInternalError は500の本文がmodel.NewInternalErrorと一致することを検証する。
func TestWriteInternalServerError_MatchesInternalError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	e := model.NewInternalError()
	want := ErrorResponseBody{Code: e.Code, Message: e.Message, Category: e.Category, Action: e.Action}
	if got := decodeErrorBody(t, w); got != want {
		t.Errorf("body = %+v, want %+v", got, want)
	}
}

// TestWriteRateLimitedResponse はRetry-Afterと429本文を検証する。
func TestWriteRateLimitedResponse(t *testing.T) {
	tests := []struct {
		sec  int
		want string
	}{
		{10, "10"},
		{0, "1"},
		{-3, "1"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteRateLimitedResponse(w, tt.sec)

		if w.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429", w.Code)
		}
		if got := w.Header().Get("Retry-After"); got != tt.want {
			t.Errorf("Retry-After(%d) = %q, want %q", tt.sec, got, tt.want)
		}
		if got := decodeErrorBody(t, w); got.Code != model.ErrCodeRateLimited {
			t.Errorf("code = %q, want %q", got.Code, model.ErrCodeRateLimited)
		}
	}
}
