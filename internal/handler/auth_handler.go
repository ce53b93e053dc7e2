// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/flagfinder/internal/auth"
	"github.com/hitoshi/flagfinder/internal/middleware"
	"github.com/hitoshi/flagfinder/internal/model"
)

const oauthStateCookie = "oauth_state"

// DefaultSessionMaxAge はInstagramセッションCookieの有効期間（7日）。
const DefaultSessionMaxAge = 7 * 24 * 60 * 60

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*model.SessionCredential, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はInstagram OAuth関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = DefaultSessionMaxAge
	}
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// CheckAuth はアクセストークンCookieの有無でログイン状態を返す。
// GET /api/check-auth
func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	_, ok := middleware.CredentialFromRequest(r)
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": ok})
}

// Login はInstagram OAuthフローを開始する。
// GET /api/instagram/auth
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	url, err := h.service.LoginURL(state)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, url, http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// GET /api/instagram/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidOAuthStateError())
		return
	}

	// stateクッキーを削除
	h.clearCookie(w, oauthStateCookie)

	// 2. 認可コードの交換
	cred, err := h.service.HandleCallback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// 3. セッションCookieを設定（HTTP Only）
	h.setSessionCookie(w, middleware.AccessTokenCookieName, cred.AccessToken)
	h.setSessionCookie(w, middleware.UserIDCookieName, cred.UserID)

	// 4. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL+"/?auth=success", http.StatusFound)
}

// Logout はInstagramのセッションCookieを削除する。
// POST /api/instagram/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, middleware.AccessTokenCookieName)
	h.clearCookie(w, middleware.UserIDCookieName)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
