// Package analysis は相性診断レコードの作成と参照のドメインロジックを提供する。
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/hitoshi/flagfinder/internal/metrics"
	"github.com/hitoshi/flagfinder/internal/model"
	"github.com/hitoshi/flagfinder/internal/repository"
	"github.com/hitoshi/flagfinder/internal/scrape"
)

// PlaceholderScore は採点ロジックが決まるまで返す固定の相性スコア。
const PlaceholderScore = 75

// スコア帯
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// PairFetcher は2人分のプロフィールを取得する。
type PairFetcher interface {
	FetchPair(ctx context.Context, req *scrape.Validated) (*model.Snapshot, *model.Snapshot, error)
}

// CreateRequest は解析作成リクエストの入力。
type CreateRequest struct {
	Platform string `json:"platform"`
	Profile1 string `json:"profile1"`
	Profile2 string `json:"profile2"`
	Email    string `json:"email"`
}

// Service は解析レコードのサービス層。
type Service struct {
	repo    repository.AnalysisRepository
	fetcher PairFetcher
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.AnalysisRepository,
	fetcher PairFetcher,
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
		repo:    repo,
		fetcher: fetcher,
		metrics: mc,
		logger:  logger,
		now:     time.Now,
	}
}

// Create は2人分のプロフィールを取得し、解析レコードとして保存する。
// 取得後に呼び出し元のコンテキストが終了していた場合は保存しない。
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.Analysis, error) {
	validated, apiErr := scrape.Request{
		Platform: req.Platform,
		Profile1: req.Profile1,
		Profile2: req.Profile2,
	}.Validate()
	if apiErr != nil {
		return nil, apiErr
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, model.NewInvalidEmailError()
	}

	snap1, snap2, err := s.fetcher.FetchPair(ctx, validated)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := &model.Analysis{
		Platform:       validated.Platform,
		Profile1:       validated.Profile1,
		Profile2:       validated.Profile2,
		RequesterEmail: email,
		Profile1Data:   *snap1,
		Profile2Data:   *snap2,
		CreatedAt:      s.now().UTC(),
	}
	id, err := s.repo.Create(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("解析レコードの保存に失敗しました: %w", err)
	}
	a.ID = id

	s.metrics.RecordAnalysisCreated(string(a.Platform))
	s.logger.Info("analysis created",
		slog.String("analysis_id", id),
		slog.String("platform", string(a.Platform)),
	)
	return a, nil
}

// Get は解析レコードを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Analysis, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, model.NewMissingAnalysisIDError()
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("解析レコードの取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewAnalysisNotFoundError(id)
	}
	return a, nil
}

// CompatibilityScore は解析の相性スコアを返す。
// 採点方法が未定のため、現在は常にPlaceholderScoreを返す。
func CompatibilityScore(_ *model.Analysis) int {
	return PlaceholderScore
}

// ScoreBand はスコアを表示用の帯に分類する。
func ScoreBand(score int) string {
	switch {
	case score >= 70:
		return BandHigh
	case score >= 40:
		return BandMedium
	default:
		return BandLow
	}
}

// normalizeEmail は表示名なしの単一アドレスのみ受け付ける。
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("email is empty")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", err
	}
	if addr.Address != raw {
		return "", fmt.Errorf("email must be a bare address")
	}
	return addr.Address, nil
}
