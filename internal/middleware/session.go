// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"net/http"

	"github.com/hitoshi/flagfinder/internal/model"
)

// OAuthログイン後に発行するCookie名
const (
	AccessTokenCookieName = "instagram_access_token"
	UserIDCookieName      = "instagram_user_id"
)

// NewSessionMiddleware はInstagramのセッションCookieを読み取り、
// 認証情報をリクエストコンテキストに注入するミドルウェアを返す。
// 未ログインのリクエストもそのまま通す。ログインが必要かどうかは各処理が判断する。
func NewSessionMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, ok := CredentialFromRequest(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := model.ContextWithCredential(r.Context(), cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CredentialFromRequest はCookieからセッション認証情報を組み立てる。
// アクセストークンのCookieがない場合はfalseを返す。
func CredentialFromRequest(r *http.Request) (*model.SessionCredential, bool) {
	token, err := r.Cookie(AccessTokenCookieName)
	if err != nil || token.Value == "" {
		return nil, false
	}
	cred := &model.SessionCredential{AccessToken: token.Value}
	if uid, err := r.Cookie(UserIDCookieName); err == nil {
		cred.UserID = uid.Value
	}
	return cred, true
}
