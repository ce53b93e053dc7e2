package scrape

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/flagfinder/internal/metrics"
	"github.com/hitoshi/flagfinder/internal/model"
	"github.com/hitoshi/flagfinder/internal/security"
)

// Fetcher はプロフィール取得の実装（ブラウザまたはGraph API）。
type Fetcher interface {
	Supports(platform model.Platform) bool
	Open(ctx context.Context) (Session, error)
}

// Session はリクエスト1件分の取得セッション。2人分の取得で共有する。
type Session interface {
	Fetch(ctx context.Context, platform model.Platform, username string) (*model.Snapshot, error)
	Close()
}

// Pipeline は2人分のプロフィールを並行して取得する。
type Pipeline struct {
	fetcher   Fetcher
	sanitizer security.ContentSanitizerService
	timeout   time.Duration
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewPipeline はPipelineを生成する。timeoutは2人分の取得全体の上限。
func NewPipeline(
	fetcher Fetcher,
	sanitizer security.ContentSanitizerService,
	timeout time.Duration,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Pipeline {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher:   fetcher,
		sanitizer: sanitizer,
		timeout:   timeout,
		metrics:   mc,
		logger:    logger,
	}
}

// FetchPair は2人分のスナップショットを取得する。
// どちらかが失敗した場合はもう一方も打ち切り、両方nilでエラーを返す。
func (p *Pipeline) FetchPair(ctx context.Context, req *Validated) (*model.Snapshot, *model.Snapshot, error) {
	platform := string(req.Platform)
	if !p.fetcher.Supports(req.Platform) {
		return nil, nil, model.NewUnsupportedPlatformError(req.Platform)
	}

	start := time.Now()
	fetchCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	session, err := p.fetcher.Open(fetchCtx)
	if err != nil {
		return nil, nil, p.classify(ctx, fetchCtx, platform, err)
	}
	defer session.Close()

	var snap1, snap2 *model.Snapshot
	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		s, err := session.Fetch(gctx, req.Platform, req.Profile1)
		snap1 = s
		return err
	})
	g.Go(func() error {
		s, err := session.Fetch(gctx, req.Platform, req.Profile2)
		snap2 = s
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, p.classify(ctx, fetchCtx, platform, err)
	}

	p.metrics.RecordFetchLatency(platform, time.Since(start))
	return p.sanitize(snap1), p.sanitize(snap2), nil
}

// classify は取得エラーをAPIErrorに変換する。
// 呼び出し元のコンテキストが終了している場合はそのエラーをそのまま返す。
func (p *Pipeline) classify(parent, fetchCtx context.Context, platform string, err error) error {
	if parent.Err() != nil {
		p.metrics.RecordFetchFailure(platform, "canceled")
		return parent.Err()
	}

	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		p.metrics.RecordFetchFailure(platform, apiErr.Code)
		return apiErr
	case errors.Is(fetchCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		p.metrics.RecordFetchFailure(platform, "timeout")
		p.logger.Warn("profile fetch timed out",
			slog.String("platform", platform),
			slog.String("error", err.Error()),
		)
		return model.NewScrapeTimeoutError()
	default:
		reason := "upstream"
		if errors.Is(err, ErrLoginWall) {
			reason = "login_wall"
		}
		p.metrics.RecordFetchFailure(platform, reason)
		p.logger.Warn("profile fetch failed",
			slog.String("platform", platform),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamFailedError()
	}
}

// sanitize はスクレイピング結果をプレーンテキストとhttpsの画像URLだけに絞る。
func (p *Pipeline) sanitize(s *model.Snapshot) *model.Snapshot {
	out := &model.Snapshot{
		Followers:       s.Followers,
		Bio:             p.sanitizer.SanitizeText(s.Bio),
		ProfilePic:      p.sanitizer.SanitizeImageURL(s.ProfilePic),
		InstagramUserID: s.InstagramUserID,
		Posts:           make([]model.Post, 0, len(s.Posts)),
	}
	if out.Followers == "" {
		out.Followers = "0"
	}
	for _, post := range s.Posts {
		src := p.sanitizer.SanitizeImageURL(post.ImageURL)
		if src == "" {
			continue
		}
		out.Posts = append(out.Posts, model.Post{
			ImageURL: src,
			Caption:  p.sanitizer.SanitizeText(post.Caption),
		})
	}
	return out
}
