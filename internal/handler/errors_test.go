package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/flagfinder/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeInvalidPlatform, http.StatusBadRequest},
		{model.ErrCodeMissingProfile, http.StatusBadRequest},
		{model.ErrCodeInvalidUsername, http.StatusBadRequest},
		{model.ErrCodeInvalidEmail, http.StatusBadRequest},
		{model.ErrCodeUnsupportedPlatform, http.StatusBadRequest},
		{model.ErrCodeInvalidSignedRequest, http.StatusBadRequest},
		{model.ErrCodeMissingUserID, http.StatusBadRequest},
		{model.ErrCodeMissingAuthCode, http.StatusBadRequest},
		{model.ErrCodeInvalidOAuthState, http.StatusBadRequest},
		{model.ErrCodeMissingAnalysisID, http.StatusBadRequest},
		{model.ErrCodeUnauthenticated, http.StatusUnauthorized},
		{model.ErrCodeInvalidSignature, http.StatusForbidden},
		{model.ErrCodeAnalysisNotFound, http.StatusNotFound},
		{model.ErrCodeRateLimited, http.StatusTooManyRequests},
		{model.ErrCodeScrapeTimeout, http.StatusGatewayTimeout},
		{model.ErrCodeConfigMissing, http.StatusInternalServerError},
		{model.ErrCodeTokenExchangeFailed, http.StatusInternalServerError},
		{model.ErrCodeUpstreamFailed, http.StatusInternalServerError},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code}); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handleServiceError(w, req, fmt.Errorf("scrape alice: %w", model.NewScrapeTimeoutError()))

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", w.Code)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeScrapeTimeout || body["category"] != "upstream" || body["action"] == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleServiceError_InternalHidesDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handleServiceError(w, req, errors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeInternal {
		t.Errorf("code = %q", body["code"])
	}
	if body["message"] == "pq: password authentication failed" {
		t.Error("internal error details must not be exposed")
	}
}

func TestHandleServiceError_CanceledByClient_WritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	handleServiceError(w, req, fmt.Errorf("fetch: %w", context.Canceled))

	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestDecodeJSONBody_TooLarge(t *testing.T) {
	big := make([]byte, maxRequestBodyBytes+10)
	for i := range big {
		big[i] = ' '
	}
	big[0] = '"'
	big[len(big)-1] = '"'
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(big))
	w := httptest.NewRecorder()

	var dst string
	apiErr := decodeJSONBody(w, req, &dst)
	if apiErr == nil || apiErr.Code != model.ErrCodeInvalidRequest {
		t.Errorf("apiErr = %v, want INVALID_REQUEST", apiErr)
	}
}
