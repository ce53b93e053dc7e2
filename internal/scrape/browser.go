package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/flagfinder/internal/metrics"
	"github.com/hitoshi/flagfinder/internal/model"
)

// ErrLoginWall はプロフィールの代わりにログイン画面が表示された場合のエラー。
// 試行失敗として扱い、リトライ対象になる。
var ErrLoginWall = errors.New("login wall detected")

// BrowserLauncher はリクエストごとにブラウザを起動する。
type BrowserLauncher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser は起動済みのブラウザ。複数のタブを同時に開ける。
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page はブラウザの1タブ。
type Page interface {
	Navigate(ctx context.Context, url string) error
	HasElement(ctx context.Context, selector string) (bool, error)
	ScrollToBottom(ctx context.Context) error
	WaitVisible(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// URLValidator はナビゲーション前のURL検証を行う。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// BrowserConfig はヘッドレスブラウザ取得のタイミング設定。
type BrowserConfig struct {
	Retry             RetryPolicy
	SettleDelay       time.Duration
	PostsTimeout      time.Duration
	NavigationTimeout time.Duration
}

// DefaultBrowserConfig はブラウザ取得のデフォルト設定。
var DefaultBrowserConfig = BrowserConfig{
	Retry:             DefaultRetryPolicy,
	SettleDelay:       3 * time.Second,
	PostsTimeout:      15 * time.Second,
	NavigationTimeout: 60 * time.Second,
}

// BrowserFetcher はヘッドレスブラウザで公開プロフィールページを取得するFetcher。
type BrowserFetcher struct {
	launcher  BrowserLauncher
	validator URLValidator
	config    BrowserConfig
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewBrowserFetcher はBrowserFetcherを生成する。
func NewBrowserFetcher(
	launcher BrowserLauncher,
	validator URLValidator,
	config BrowserConfig,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *BrowserFetcher {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserFetcher{
		launcher:  launcher,
		validator: validator,
		config:    config,
		metrics:   mc,
		logger:    logger,
	}
}

// Supports はブラウザ取得が対応するプラットフォームかを返す。
func (f *BrowserFetcher) Supports(platform model.Platform) bool {
	return platform == model.PlatformInstagram || platform == model.PlatformTwitter
}

// Open はブラウザを1つ起動し、2人分の取得で共有するセッションを返す。
func (f *BrowserFetcher) Open(ctx context.Context) (Session, error) {
	b, err := f.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return &browserSession{fetcher: f, browser: b}, nil
}

type browserSession struct {
	fetcher *BrowserFetcher
	browser Browser
}

// Fetch はユーザー1人分のプロフィールをリトライ付きで取得する。
func (s *browserSession) Fetch(ctx context.Context, platform model.Platform, username string) (*model.Snapshot, error) {
	f := s.fetcher
	profileURL := ProfileURL(platform, username)
	if err := f.validator.ValidateURL(profileURL); err != nil {
		return nil, fmt.Errorf("profile url rejected: %w", err)
	}

	var snap *model.Snapshot
	err := f.config.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		var err error
		snap, err = s.scrapeOnce(ctx, profileURL)
		if err != nil {
			f.metrics.RecordScrapeAttempt(string(platform), "failure")
			return err
		}
		f.metrics.RecordScrapeAttempt(string(platform), "success")
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		f.logger.Warn("scrape attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("username", username),
			slog.String("platform", string(platform)),
			slog.String("error", err.Error()),
			slog.Int64("delay_ms", delay.Milliseconds()),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", username, err)
	}
	return snap, nil
}

// scrapeOnce は1回分の試行を行う。タブは試行ごとに開いて閉じる。
func (s *browserSession) scrapeOnce(ctx context.Context, profileURL string) (*model.Snapshot, error) {
	cfg := s.fetcher.config

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
	err = page.Navigate(navCtx, profileURL)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	wall, err := page.HasElement(ctx, loginWallSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect page: %w", err)
	}
	if wall {
		return nil, ErrLoginWall
	}

	if err := page.ScrollToBottom(ctx); err != nil {
		return nil, fmt.Errorf("failed to scroll: %w", err)
	}
	if err := sleepContext(ctx, cfg.SettleDelay); err != nil {
		return nil, err
	}

	// 投稿の表示待ちは上限付きで、タイムアウトしても取得を続ける
	waitCtx, cancel := context.WithTimeout(ctx, cfg.PostsTimeout)
	err = page.WaitVisible(waitCtx, postsReadySelector)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.fetcher.logger.Debug("posts did not appear in time",
			slog.String("url", profileURL),
			slog.String("error", err.Error()),
		)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture page html: %w", err)
	}

	return ExtractProfile(html)
}

// Close はブラウザを終了する。
func (s *browserSession) Close() {
	if err := s.browser.Close(); err != nil {
		s.fetcher.logger.Warn("failed to close browser", slog.String("error", err.Error()))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
