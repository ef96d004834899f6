package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// タグ割り当てモード
const (
	TagModeTransactional = "transactional"
	TagModeSequential    = "sequential"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreURL    string
	StoreAPIKey string
	DatabaseURL string // StoreURLにStoreAPIKeyをパスワードとして埋め込んだ接続URL

	// Auth
	JWTSecret   string // 空の場合は管理APIを公開しない
	JWTAudience string

	// Site
	SiteTitle       string
	SiteDescription string

	// Rate Limit (requests per minute)
	RateLimitPublic int
	RateLimitAdmin  int
	RateLimitImport int

	// Posts
	TagAssignmentMode     string
	PublicListLimit       int
	MaxFeaturedImageBytes int64

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// AdminEnabled は管理APIを公開するかどうかを返す。
func (c *Config) AdminEnabled() bool {
	return c.JWTSecret != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.StoreURL = os.Getenv("STORE_URL")
	if cfg.StoreURL == "" {
		missing = append(missing, "STORE_URL")
	}

	cfg.StoreAPIKey = os.Getenv("STORE_API_KEY")
	if cfg.StoreAPIKey == "" {
		missing = append(missing, "STORE_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	dsn, err := buildDatabaseURL(cfg.StoreURL, cfg.StoreAPIKey)
	if err != nil {
		return nil, err
	}
	cfg.DatabaseURL = dsn

	// Optional fields with defaults
	cfg.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.JWTAudience = getEnvString("AUTH_JWT_AUDIENCE", "authenticated")
	cfg.SiteTitle = getEnvString("SITE_TITLE", "Blog")
	cfg.SiteDescription = getEnvString("SITE_DESCRIPTION", "")
	cfg.RateLimitPublic = getEnvInt("RATE_LIMIT_PUBLIC", 300)
	cfg.RateLimitAdmin = getEnvInt("RATE_LIMIT_ADMIN", 120)
	cfg.RateLimitImport = getEnvInt("RATE_LIMIT_IMPORT", 10)
	cfg.TagAssignmentMode = strings.ToLower(getEnvString("TAG_ASSIGNMENT_MODE", TagModeTransactional))
	cfg.PublicListLimit = getEnvInt("PUBLIC_LIST_LIMIT", 10)
	cfg.MaxFeaturedImageBytes = getEnvInt64("MAX_FEATURED_IMAGE_BYTES", 5242880)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:8080"), "/")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	switch cfg.TagAssignmentMode {
	case TagModeTransactional, TagModeSequential:
	default:
		return nil, fmt.Errorf("TAG_ASSIGNMENT_MODE must be %q or %q: got %q",
			TagModeTransactional, TagModeSequential, cfg.TagAssignmentMode)
	}

	return cfg, nil
}

// buildDatabaseURL はストアURLにアクセスキーをパスワードとして設定した接続URLを返す。
// URLにユーザー名がない場合はpostgresを使用する。
func buildDatabaseURL(storeURL, apiKey string) (string, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return "", fmt.Errorf("STORE_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("STORE_URL must use the postgres scheme: got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("STORE_URL has no host")
	}

	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, apiKey)
	return u.String(), nil
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
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
