package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/flagfinder/internal/middleware"
	"github.com/hitoshi/flagfinder/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 16 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSONBody はサイズ上限付きでリクエストボディをデコードする。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) *model.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewInvalidRequestError()
	}
	return nil
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// クライアントが切断済みの場合は何も書き込まない。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil && errors.Is(err, context.Canceled) {
		slog.Info("request canceled by client",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			slog.Error("request failed",
				slog.String("code", apiErr.Code),
				slog.String("message", apiErr.Message),
			)
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidPlatform,
		model.ErrCodeMissingProfile,
		model.ErrCodeInvalidUsername,
		model.ErrCodeInvalidEmail,
		model.ErrCodeUnsupportedPlatform,
		model.ErrCodeInvalidSignedRequest,
		model.ErrCodeMissingUserID,
		model.ErrCodeMissingAuthCode,
		model.ErrCodeInvalidOAuthState,
		model.ErrCodeMissingAnalysisID:
		return http.StatusBadRequest
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidSignature:
		return http.StatusForbidden
	case model.ErrCodeAnalysisNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeScrapeTimeout:
		return http.StatusGatewayTimeout
	case model.ErrCodeConfigMissing,
		model.ErrCodeTokenExchangeFailed,
		model.ErrCodeUpstreamFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
