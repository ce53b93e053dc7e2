package middleware

import (
	"net/http"
	"strings"
)

// ブラウザから呼ばれるAPIはGETとPOSTだけ。Meta側からのデータ削除コールバックはサーバー間通信なのでCORSの対象外。
const (
	corsAllowedMethods = "GET, POST"
	corsAllowedHeaders = "Content-Type"
	corsMaxAge         = "600"
)

// NewCORSMiddleware はフロントエンドのオリジンからのCookie付きリクエストを許可するCORSミドルウェアを返す。
//
// Originヘッダーが設定値と一致したときだけAllow-Originを返す。
// OPTIONSはルーティングやレート制限に進めず204で返す。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	allowedOrigin = strings.TrimSuffix(allowedOrigin, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			allowed := origin != "" && strings.EqualFold(origin, allowedOrigin)
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if allowed && preflightMethodAllowed(r.Header.Get("Access-Control-Request-Method")) {
				h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

// preflightMethodAllowed はプリフライトで要求されたメソッドをAPIが受け付けるかを返す。
func preflightMethodAllowed(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost:
		return true
	default:
		return false
	}
}
