package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/flagfinder/internal/metrics"
	"github.com/hitoshi/flagfinder/internal/model"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、instagram_user_id（ログイン済みの場合）を含む。
// レスポンスを書かずに終わったリクエスト（クライアント切断など）はstatus 499として記録する。
func NewLoggingMiddleware(logger *slog.Logger, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			status := rec.statusCode
			if !rec.written && r.Context().Err() != nil {
				status = statusClientClosedRequest
			}

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Float64("duration_ms", durationMs),
			}

			// ログイン済みの場合はInstagramユーザーIDを追加
			if cred, ok := model.CredentialFromContext(r.Context()); ok && cred.UserID != "" {
				attrs = append(attrs, slog.String("instagram_user_id", cred.UserID))
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}

			mc.RecordHTTPStatus(status)
			logger.Log(r.Context(), level, "http_request", attrs...)
		})
	}
}

// statusClientClosedRequest はクライアントが応答前に切断したことを表す非標準ステータス。
const statusClientClosedRequest = 499
