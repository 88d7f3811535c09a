// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// LLM (Gemini)
	GeminiAPIKey string
	GeminiModel  string
	// LLMTimeout はゲートウェイ呼び出し1回あたりのタイムアウト。
	// 超過時はフォールバック値で処理を継続する（面接を停滞させない）。
	LLMTimeout time.Duration

	// Interview
	// PlanPath は6スロット構成を上書きするYAMLファイルのパス（空ならデフォルト構成）。
	PlanPath string
	// ClockInterval はカウントダウンの減算間隔。本番は1秒固定を想定し、
	// テストでは短縮できるように設定化している。
	ClockInterval time.Duration
	// SubmitRearmDelay は提出ロック解除までの猶予。次の質問のタイマーが
	// 解除直後のロックに飛び込むレースを避けるための遅延。
	SubmitRearmDelay time.Duration

	// Webhook
	WebhookTimeout time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitSubmit  int

	// Logging
	LogLevel string

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
	// GEMINI_API_KEY未設定でも起動可能。その場合すべてのゲートウェイ呼び出しは
	// フォールバック値で完結する（オフライン開発・テスト用）。
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 20*time.Second)
	cfg.PlanPath = getEnvString("INTERVIEW_PLAN_PATH", "")
	cfg.ClockInterval = getEnvDuration("CLOCK_INTERVAL", time.Second)
	cfg.SubmitRearmDelay = getEnvDuration("SUBMIT_REARM_DELAY", 500*time.Millisecond)
	cfg.WebhookTimeout = getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmit = getEnvInt("RATE_LIMIT_SUBMIT", 30)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
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
