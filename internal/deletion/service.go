// Package deletion はInstagramのデータ削除コールバックを処理する。
package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hitoshi/flagfinder/internal/auth"
	"github.com/hitoshi/flagfinder/internal/metrics"
	"github.com/hitoshi/flagfinder/internal/model"
	"github.com/hitoshi/flagfinder/internal/repository"
)

// ConfirmationPath はユーザーに案内する削除確認ページのパス。
const ConfirmationPath = "/data-deletion-confirmation"

// Service はデータ削除リクエストのサービス層。
type Service struct {
	repo      repository.AnalysisRepository
	appSecret string
	baseURL   string
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.AnalysisRepository,
	appSecret, baseURL string,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		appSecret: appSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		metrics:   mc,
		logger:    logger,
	}
}

// HandleSignedRequest はsigned_requestを検証し、該当ユーザーのスナップショットを含む解析レコードを削除する。
// 検証に失敗した場合は何も削除しない。戻り値は削除確認ページのURL。
func (s *Service) HandleSignedRequest(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", model.NewInvalidSignedRequestError("Missing signed_request")
	}
	if s.appSecret == "" {
		return "", model.NewConfigMissingError("Instagram app secret")
	}

	req, err := auth.ParseSignedRequest(raw, s.appSecret)
	switch {
	case errors.Is(err, auth.ErrInvalidSignature):
		s.logger.Warn("data deletion request rejected", slog.String("reason", "invalid signature"))
		return "", model.NewInvalidSignatureError()
	case errors.Is(err, auth.ErrMalformedSignedRequest):
		s.logger.Warn("data deletion request rejected", slog.String("reason", err.Error()))
		return "", model.NewInvalidSignedRequestError("Malformed signed_request")
	case err != nil:
		return "", fmt.Errorf("signed_requestの検証に失敗しました: %w", err)
	}
	if req.UserID == "" {
		return "", model.NewMissingUserIDError()
	}

	// 1人目と2人目は独立に削除し、片方が失敗してももう一方は実行する
	n1, err1 := s.repo.DeleteByProfile1InstagramUserID(ctx, req.UserID)
	n2, err2 := s.repo.DeleteByProfile2InstagramUserID(ctx, req.UserID)
	deleted := n1 + n2
	s.metrics.RecordRecordsDeleted(deleted)

	if err := errors.Join(err1, err2); err != nil {
		s.logger.Error("data deletion failed",
			slog.String("instagram_user_id", req.UserID),
			slog.Int("deleted", deleted),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("解析レコードの削除に失敗しました: %w", err)
	}

	s.logger.Info("data deletion completed",
		slog.String("instagram_user_id", req.UserID),
		slog.Int("deleted", deleted),
	)
	return s.ConfirmationURL(req.UserID), nil
}

// ConfirmationURL はユーザーIDをクエリに含む削除確認ページのURLを返す。
func (s *Service) ConfirmationURL(userID string) string {
	q := url.Values{}
	q.Set("user_id", userID)
	return s.baseURL + ConfirmationPath + "?" + q.Encode()
}
