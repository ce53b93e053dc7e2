package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/flagfinder/internal/analysis"
	"github.com/hitoshi/flagfinder/internal/auth"
	"github.com/hitoshi/flagfinder/internal/config"
	"github.com/hitoshi/flagfinder/internal/database"
	"github.com/hitoshi/flagfinder/internal/deletion"
	"github.com/hitoshi/flagfinder/internal/handler"
	"github.com/hitoshi/flagfinder/internal/instagram"
	"github.com/hitoshi/flagfinder/internal/logger"
	"github.com/hitoshi/flagfinder/internal/metrics"
	"github.com/hitoshi/flagfinder/internal/middleware"
	"github.com/hitoshi/flagfinder/internal/repository"
	"github.com/hitoshi/flagfinder/internal/scrape"
	"github.com/hitoshi/flagfinder/internal/security"
)

// プロフィール取得先として許可するホスト
var scrapeAllowedHosts = []string{"instagram.com", "x.com"}

// 取得全体のタイムアウトに上乗せするレスポンス書き込みの猶予
const writeTimeoutMargin = 15 * time.Second

// トークン交換のタイムアウト
const tokenExchangeTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数（と.env）からConfigを読み込み、
// LOG_LEVELを反映したロガーを返す。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルでロガーを差し替える
	l := logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, l, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if !cmd.needsConfig() {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("fetch_mode", cfg.FetchMode),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, l)
	default:
		return runServe(cfg, l)
	}
}

// store は選択されたバックエンドのリポジトリと、その疎通確認・終了処理をまとめたもの。
type store struct {
	repo   repository.AnalysisRepository
	health handler.HealthChecker
	close  func() error
}

// openStore はSTORE_BACKENDに応じて解析レコードのストアを開き、疎通を確認する。
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		repo := repository.NewFirestoreAnalysisRepo(client, cfg.FirestoreCollection)
		return &store{repo: repo, health: repo, close: client.Close}, nil

	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Ping(ctx, db, 5*time.Second); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := repository.NewPostgresAnalysisRepo(db)
		return &store{repo: repo, health: repo, close: db.Close}, nil
	}
}

// newFetcher はFETCH_MODEに応じたプロフィール取得の実装を生成する。
func newFetcher(cfg *config.Config, mc metrics.MetricsCollector, l *slog.Logger) scrape.Fetcher {
	guard := security.NewSSRFGuard(scrapeAllowedHosts...)

	if cfg.FetchMode == config.FetchModeGraph {
		client := instagram.NewClient(guard.NewSafeClient(cfg.GraphAPITimeout), cfg.InstagramGraphURL, l)
		return scrape.NewGraphFetcher(client)
	}

	browserCfg := scrape.BrowserConfig{
		Retry: scrape.RetryPolicy{
			MaxAttempts: cfg.ScrapeMaxAttempts,
			Delay:       cfg.ScrapeRetryDelay,
		},
		SettleDelay:       cfg.ScrapeSettleDelay,
		PostsTimeout:      cfg.ScrapePostsTimeout,
		NavigationTimeout: cfg.ScrapeNavTimeout,
	}
	return scrape.NewBrowserFetcher(scrape.NewChromeLauncher(cfg.ChromePath), guard, browserCfg, mc, l)
}

// newRouterDeps は設定とストアから全依存関係をワイヤリングする。
func newRouterDeps(cfg *config.Config, st *store, reg *prometheus.Registry, l *slog.Logger) *handler.RouterDeps {
	mc := metrics.NewCollector(reg)

	// 1. 取得パイプライン
	pipeline := scrape.NewPipeline(
		newFetcher(cfg, mc, l),
		security.NewContentSanitizer(),
		cfg.ScrapeRequestTimeout,
		mc, l,
	)

	// 2. ドメインサービス
	oauthProvider := auth.NewInstagramOAuthProvider(auth.InstagramOAuthConfig{
		AppID:       cfg.InstagramAppID,
		AppSecret:   cfg.InstagramAppSecret,
		RedirectURI: cfg.InstagramRedirectURI,
		HTTPClient:  security.NewSSRFGuard().NewSafeClient(tokenExchangeTimeout),
	})
	authService := auth.NewService(oauthProvider, l)
	analysisService := analysis.NewService(st.repo, pipeline, mc, l)
	deletionService := deletion.NewService(st.repo, cfg.InstagramAppSecret, cfg.BaseURL, mc, l)

	if !cfg.OAuthConfigured() {
		l.Warn("instagram oauth is not configured; login endpoints will return CONFIG_MISSING")
	}
	if !cfg.WebhookConfigured() {
		l.Warn("instagram app secret is not configured; data deletion will return CONFIG_MISSING")
	}

	return &handler.RouterDeps{
		Logger:            l,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitScrape)),
		Metrics:           mc,
		MetricsGatherer:   reg,
		HealthChecker:     st.health,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:      cfg.BaseURL,
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		ScrapeService:   pipeline,
		AnalysisService: analysisService,
		DeletionService: deletionService,
	}
}

// newRegistry はGo・プロセスのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// ストアに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, l *slog.Logger) error {
	// 1. ストア接続
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.close()

	l.Info("store connection established", slog.String("backend", cfg.StoreBackend))

	// 2. ルーターの構築
	deps := newRouterDeps(cfg, st, newRegistry(), l)
	defer deps.RateLimiter.Stop()

	router := handler.NewRouter(deps)

	// 3. HTTPサーバーの起動
	// 取得は最大ScrapeRequestTimeoutかかるため、書き込みタイムアウトはそれより長くする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ScrapeRequestTimeout + writeTimeoutMargin,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		l.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	l.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// Firestoreバックエンドではスキーマがないため何もしない。
func runMigrate(cfg *config.Config, l *slog.Logger) error {
	if cfg.StoreBackend != config.StoreBackendPostgres {
		l.Info("store backend has no migrations", slog.String("backend", cfg.StoreBackend))
		return nil
	}

	l.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	l.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// コンテナのヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
