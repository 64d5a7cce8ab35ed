package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// StorageDriver はストレージ実装の選択肢を表す。
type StorageDriver string

const (
	// StorageDriverMemory はインメモリストレージ。開発・テスト用。
	StorageDriverMemory StorageDriver = "memory"
	// StorageDriverPostgres はPostgreSQLストレージ。
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageDriver StorageDriver
	DatabaseURL   string

	// Sync
	SyncInterval      time.Duration
	SyncMaxConcurrent int

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitFeedReg int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Identity
	// セッションやX-User-IDヘッダーを持たないリクエストに割り当てる
	// ユーザーID。空の場合、識別情報のないリクエストは401になる。
	DefaultUserID string
}

// Load は環境変数からConfigを読み込む。
// STORAGE_DRIVER=postgresの場合のみDATABASE_URLが必須となる。
func Load() (*Config, error) {
	cfg := &Config{}

	driver := StorageDriver(getEnvString("STORAGE_DRIVER", string(StorageDriverMemory)))
	switch driver {
	case StorageDriverMemory, StorageDriverPostgres:
		cfg.StorageDriver = driver
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER: %q (allowed: memory, postgres)", driver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StorageDriver == StorageDriverPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}

	// Optional fields with defaults
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", time.Minute)
	cfg.SyncMaxConcurrent = getEnvInt("SYNC_MAX_CONCURRENT", 10)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitFeedReg = getEnvInt("RATE_LIMIT_FEED_REG", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.DefaultUserID = getEnvString("DEFAULT_USER_ID", "local")

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
