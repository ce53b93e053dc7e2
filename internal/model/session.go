package model

import "context"

// SessionCredential はOAuthログイン後にCookieで保持するプロバイダーの認証情報。
type SessionCredential struct {
	AccessToken string
	UserID      string
}

type credentialContextKey struct{}

// ContextWithCredential はセッション認証情報をコンテキストに格納する。
func ContextWithCredential(ctx context.Context, cred *SessionCredential) context.Context {
	return context.WithValue(ctx, credentialContextKey{}, cred)
}

// CredentialFromContext はコンテキストからセッション認証情報を取り出す。
// アクセストークンが空の場合は未ログインとして扱う。
func CredentialFromContext(ctx context.Context) (*SessionCredential, bool) {
	cred, ok := ctx.Value(credentialContextKey{}).(*SessionCredential)
	if !ok || cred == nil || cred.AccessToken == "" {
		return nil, false
	}
	return cred, true
}
