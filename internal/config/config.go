package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int

	// Summarizer
	SummaryAPIKey       string
	SummaryAPIURL       string
	SummaryModels       []string
	SummaryMaxTokens    int
	SummaryBatchSize    int
	SummaryBatchDelay   time.Duration
	SummaryRatePerSec   float64
	SummaryCallTimeout  time.Duration
	PromptContentBudget int

	// Pipeline
	MaxArticlesPerSource int
	MinContentLength     int
	MaxContentLength     int
	TaskPollInterval     time.Duration
	TaskStaleAfter       time.Duration
	CleanupInterval      time.Duration

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 15*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 10485760)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 5)

	// APIキー未設定の場合、要約はローカル生成モードで動作する
	cfg.SummaryAPIKey = os.Getenv("DEEPSEEK_API_KEY")
	cfg.SummaryAPIURL = getEnvString("SUMMARY_API_URL", "https://api.deepseek.com/v1/chat/completions")
	cfg.SummaryModels = getEnvList("SUMMARY_MODELS", []string{"deepseek-chat", "deepseek-coder"})
	cfg.SummaryMaxTokens = getEnvInt("SUMMARY_MAX_TOKENS", 500)
	cfg.SummaryBatchSize = getEnvInt("SUMMARY_BATCH_SIZE", 5)
	cfg.SummaryBatchDelay = getEnvDuration("SUMMARY_BATCH_DELAY", time.Second)
	cfg.SummaryRatePerSec = getEnvFloat("SUMMARY_RATE_PER_SEC", 2.0)
	cfg.SummaryCallTimeout = getEnvDuration("SUMMARY_CALL_TIMEOUT", 30*time.Second)
	cfg.PromptContentBudget = getEnvInt("PROMPT_CONTENT_BUDGET", 3000)

	cfg.MaxArticlesPerSource = getEnvInt("MAX_ARTICLES_PER_SOURCE", 50)
	cfg.MinContentLength = getEnvInt("MIN_CONTENT_LENGTH", 200)
	cfg.MaxContentLength = getEnvInt("MAX_CONTENT_LENGTH", 50000)
	cfg.TaskPollInterval = getEnvDuration("TASK_POLL_INTERVAL", 10*time.Second)
	cfg.TaskStaleAfter = getEnvDuration("TASK_STALE_AFTER", 30*time.Minute)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 10*time.Minute)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
