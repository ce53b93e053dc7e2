package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/flagfinder/internal/model"
)

const (
	defaultInstagramAuthURL  = "https://api.instagram.com/oauth/authorize"
	defaultInstagramTokenURL = "https://api.instagram.com/oauth/access_token"

	// instagramScope はBasic Display APIで要求するスコープ。
	instagramScope = "user_profile,user_media"

	// maxTokenResponseSize はトークンレスポンスの読み込み上限。
	maxTokenResponseSize = 64 << 10
)

// ErrConfigMissing はInstagramアプリの設定が不足している場合のエラー。
var ErrConfigMissing = errors.New("instagram app configuration missing")

// TokenExchangeError はトークンエンドポイントが成功以外のステータスを返した場合のエラー。
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// InstagramOAuthConfig はInstagram OAuthプロバイダーの設定。
type InstagramOAuthConfig struct {
	AppID       string
	AppSecret   string
	RedirectURI string

	// HTTPClient はトークン交換に使うクライアント。nilの場合は10秒タイムアウトのクライアントを使う。
	HTTPClient *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
}

// InstagramOAuthProvider はInstagramのOAuth 2.0認可コードフローを提供する。
type InstagramOAuthProvider struct {
	config InstagramOAuthConfig
	client *http.Client
}

// NewInstagramOAuthProvider はInstagramOAuthProviderを生成する。
func NewInstagramOAuthProvider(config InstagramOAuthConfig) *InstagramOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultInstagramAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultInstagramTokenURL
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &InstagramOAuthProvider{config: config, client: client}
}

// LoginURL はInstagramの認可URLを生成する。
// アプリIDまたはリダイレクトURIが未設定の場合はErrConfigMissingを返す。
func (p *InstagramOAuthProvider) LoginURL(state string) (string, error) {
	if p.config.AppID == "" || p.config.RedirectURI == "" {
		return "", ErrConfigMissing
	}

	params := url.Values{
		"client_id":     {p.config.AppID},
		"redirect_uri":  {p.config.RedirectURI},
		"scope":         {instagramScope},
		"response_type": {"code"},
	}
	if state != "" {
		params.Set("state", state)
	}
	return p.config.AuthURL + "?" + params.Encode(), nil
}

// instagramTokenResponse はトークンエンドポイントのレスポンス。
// user_idは数値で返るが、文字列でも受け付ける。
type instagramTokenResponse struct {
	AccessToken string     `json:"access_token"`
	UserID      ProviderID `json:"user_id"`
}

// ExchangeCode は認可コードを短期アクセストークンとユーザーIDに交換する。
func (p *InstagramOAuthProvider) ExchangeCode(ctx context.Context, code string) (*model.SessionCredential, error) {
	if p.config.AppID == "" || p.config.AppSecret == "" || p.config.RedirectURI == "" {
		return nil, ErrConfigMissing
	}

	data := url.Values{
		"client_id":     {p.config.AppID},
		"client_secret": {p.config.AppSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {p.config.RedirectURI},
		"code":          {code},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp instagramTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &model.SessionCredential{
		AccessToken: tokenResp.AccessToken,
		UserID:      string(tokenResp.UserID),
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*InstagramOAuthProvider)(nil)
