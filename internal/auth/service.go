// Package auth はInstagram OAuthフローとsigned_requestの検証を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/flagfinder/internal/model"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// LoginURL はOAuth認可URLを生成する。
	LoginURL(state string) (string, error)
	// ExchangeCode は認可コードをセッション認証情報に交換する。
	ExchangeCode(ctx context.Context, code string) (*model.SessionCredential, error)
}

// Service はOAuthログインに関するビジネスロジックを提供する。
// プロバイダーのエラーをAPIErrorに変換する。
type Service struct {
	oauth  OAuthProvider
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{oauth: oauth, logger: logger}
}

// LoginURL はOAuth認可URLを生成する。
func (s *Service) LoginURL(state string) (string, error) {
	u, err := s.oauth.LoginURL(state)
	if errors.Is(err, ErrConfigMissing) {
		s.logger.Error("instagram oauth is not configured")
		return "", model.NewConfigMissingError("Instagram")
	}
	if err != nil {
		return "", fmt.Errorf("failed to build login url: %w", err)
	}
	return u, nil
}

// HandleCallback は認可コードを交換し、Cookieに保存するセッション認証情報を返す。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.SessionCredential, error) {
	if code == "" {
		return nil, model.NewMissingAuthCodeError()
	}

	cred, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrConfigMissing) {
			s.logger.Error("instagram oauth is not configured")
			return nil, model.NewConfigMissingError("Instagram")
		}

		attrs := []any{slog.String("error", err.Error())}
		var exErr *TokenExchangeError
		if errors.As(err, &exErr) {
			attrs = append(attrs, slog.Int("status", exErr.StatusCode))
		}
		s.logger.Error("instagram token exchange failed", attrs...)
		return nil, model.NewTokenExchangeFailedError()
	}

	s.logger.Info("instagram login succeeded", slog.String("instagram_user_id", cred.UserID))
	return cred, nil
}

// GenerateState はCSRF対策用のランダムなstate値を生成する。
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
