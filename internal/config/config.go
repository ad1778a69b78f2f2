package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/hitoshi/growthsession/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// OAuth
	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURL  string

	// Session
	SessionMaxAge int

	// Rate Limit (1分あたりのリクエスト数)
	RateLimitGeneral int
	RateLimitWrite   int

	// Schedule
	Location *time.Location

	// Bot連携用のBearerトークン。空の場合は無効。
	SlackBotToken string

	// Webhook
	WebhookEndpoints   map[model.NotificationKind]string
	WebhookStartTime   model.TimeOfDay
	WebhookEndTime     model.TimeOfDay
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int
	WebhookQueueSize   int
	WebhookWorkers     int
	WebhookAllowHTTP   bool

	// Workers
	AutoSessionHostEmail      string
	AutoSessionInterval       time.Duration
	LoginSessionRetentionDays int
	CleanupInterval           time.Duration
	// WorkerMetricsPort はワーカーモードでメトリクスを公開するポート。空の場合は公開しない。
	WorkerMetricsPort string

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// webhookEnvKeys は通知種別ごとの送信先URLの環境変数名。
var webhookEnvKeys = map[model.NotificationKind]string{
	model.NotificationCreatedToday:   "WEBHOOK_CREATED_TODAY",
	model.NotificationUpdatedToday:   "WEBHOOK_UPDATED_TODAY",
	model.NotificationDeletedToday:   "WEBHOOK_DELETED_TODAY",
	model.NotificationAttendeesToday: "WEBHOOK_ATTENDEES_TODAY",
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、またはタイムゾーン・時刻の形式が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GitHubClientID = os.Getenv("GITHUB_CLIENT_ID")
	if cfg.GitHubClientID == "" {
		missing = append(missing, "GITHUB_CLIENT_ID")
	}

	cfg.GitHubClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	if cfg.GitHubClientSecret == "" {
		missing = append(missing, "GITHUB_CLIENT_SECRET")
	}

	cfg.GitHubRedirectURL = os.Getenv("GITHUB_REDIRECT_URL")
	if cfg.GitHubRedirectURL == "" {
		missing = append(missing, "GITHUB_REDIRECT_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 20)
	cfg.SlackBotToken = os.Getenv("SLACK_BOT_TOKEN")
	cfg.WebhookTimeout = getEnvDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	cfg.WebhookMaxAttempts = getEnvInt("WEBHOOK_MAX_ATTEMPTS", 3)
	cfg.WebhookQueueSize = getEnvInt("WEBHOOK_QUEUE_SIZE", 100)
	cfg.WebhookWorkers = getEnvInt("WEBHOOK_WORKERS", 2)
	cfg.WebhookAllowHTTP = getEnvBool("WEBHOOK_ALLOW_HTTP", false)
	cfg.AutoSessionHostEmail = os.Getenv("AUTO_SESSION_HOST_EMAIL")
	cfg.AutoSessionInterval = getEnvDuration("AUTO_SESSION_INTERVAL", 24*time.Hour)
	cfg.LoginSessionRetentionDays = getEnvInt("LOGIN_SESSION_RETENTION_DAYS", 0)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	cfg.WebhookEndpoints = make(map[model.NotificationKind]string, len(webhookEnvKeys))
	for kind, key := range webhookEnvKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.WebhookEndpoints[kind] = v
		}
	}

	tz := getEnvString("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	if cfg.WebhookStartTime, err = getEnvTimeOfDay("WEBHOOK_START_TIME", model.NewTimeOfDay(8, 0)); err != nil {
		return nil, err
	}
	if cfg.WebhookEndTime, err = getEnvTimeOfDay("WEBHOOK_END_TIME", model.NewTimeOfDay(18, 0)); err != nil {
		return nil, err
	}

	return cfg, nil
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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

func getEnvTimeOfDay(key string, defaultVal model.TimeOfDay) (model.TimeOfDay, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	t, err := model.ParseTimeOfDay(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return t, nil
}
