package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストアバックエンド
const (
	StoreBackendPostgres  = "postgres"
	StoreBackendFirestore = "firestore"
)

// プロフィール取得モード
const (
	FetchModeBrowser = "browser"
	FetchModeGraph   = "graph"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreBackend        string
	DatabaseURL         string
	FirestoreProjectID  string
	FirestoreCollection string

	// Instagram App
	InstagramAppID       string
	InstagramAppSecret   string
	InstagramRedirectURI string
	InstagramGraphURL    string

	// Fetch
	FetchMode            string
	ScrapeMaxAttempts    int
	ScrapeRetryDelay     time.Duration
	ScrapeSettleDelay    time.Duration
	ScrapePostsTimeout   time.Duration
	ScrapeNavTimeout     time.Duration
	ScrapeRequestTimeout time.Duration
	ChromePath           string
	GraphAPITimeout      time.Duration

	// Rate Limit
	RateLimitScrape int

	// Server
	ServerPort string
	BaseURL    string
	LogLevel   string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（設定済みの環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.StoreBackend = getEnvString("STORE_BACKEND", StoreBackendPostgres)
	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreBackendFirestore:
		cfg.FirestoreProjectID = os.Getenv("FIRESTORE_PROJECT_ID")
		if cfg.FirestoreProjectID == "" {
			missing = append(missing, "FIRESTORE_PROJECT_ID")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (expected %s or %s)",
			cfg.StoreBackend, StoreBackendPostgres, StoreBackendFirestore)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.FetchMode = getEnvString("FETCH_MODE", FetchModeBrowser)
	if cfg.FetchMode != FetchModeBrowser && cfg.FetchMode != FetchModeGraph {
		return nil, fmt.Errorf("unknown FETCH_MODE %q (expected %s or %s)",
			cfg.FetchMode, FetchModeBrowser, FetchModeGraph)
	}

	// Instagramアプリの設定は起動時には必須にしない。
	// 未設定の場合は該当エンドポイントがCONFIG_MISSINGを返す。
	cfg.InstagramAppID = os.Getenv("INSTAGRAM_APP_ID")
	cfg.InstagramAppSecret = os.Getenv("INSTAGRAM_APP_SECRET")
	cfg.InstagramRedirectURI = os.Getenv("INSTAGRAM_REDIRECT_URI")

	// Optional fields with defaults
	cfg.FirestoreCollection = getEnvString("FIRESTORE_COLLECTION", "analyses")
	cfg.InstagramGraphURL = strings.TrimRight(getEnvString("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com"), "/")
	cfg.ScrapeMaxAttempts = getEnvInt("SCRAPE_MAX_ATTEMPTS", 2)
	if cfg.ScrapeMaxAttempts < 1 {
		cfg.ScrapeMaxAttempts = 1
	}
	cfg.ScrapeRetryDelay = getEnvDuration("SCRAPE_RETRY_DELAY", 2*time.Second)
	cfg.ScrapeSettleDelay = getEnvDuration("SCRAPE_SETTLE_DELAY", 3*time.Second)
	cfg.ScrapePostsTimeout = getEnvDuration("SCRAPE_POSTS_TIMEOUT", 15*time.Second)
	cfg.ScrapeNavTimeout = getEnvDuration("SCRAPE_NAVIGATION_TIMEOUT", 60*time.Second)
	cfg.ScrapeRequestTimeout = getEnvDuration("SCRAPE_REQUEST_TIMEOUT", 90*time.Second)
	cfg.ChromePath = getEnvString("CHROME_PATH", "")
	cfg.GraphAPITimeout = getEnvDuration("GRAPH_API_TIMEOUT", 10*time.Second)
	cfg.RateLimitScrape = getEnvInt("RATE_LIMIT_SCRAPE", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// OAuthConfigured はOAuthログインに必要な設定がすべて揃っているかを返す。
func (c *Config) OAuthConfigured() bool {
	return c.InstagramAppID != "" && c.InstagramAppSecret != "" && c.InstagramRedirectURI != ""
}

// WebhookConfigured はデータ削除Webhookの署名検証に必要な設定があるかを返す。
func (c *Config) WebhookConfigured() bool {
	return c.InstagramAppSecret != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
