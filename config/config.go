// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string

	// ブロブストレージ
	StorageBackend  string // "local" または "s3"
	LocalStorageDir string
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	StorageTimeout  time.Duration

	// 暗号化デフォルト
	DefaultAlgorithm     string
	DefaultKeyDerivation string

	// ローテーション
	RotationWorkers int

	// 鍵素材の保護（KMS_KEY_NAME設定時はCloud KMS、未設定時はMASTER_KEY）
	KMSKeyName         string
	MasterKey          string
	GoogleCloudProject string

	// トレーシング
	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		StorageBackend:  getEnv("STORAGE_BACKEND", "local"),
		LocalStorageDir: getEnv("LOCAL_STORAGE_DIR", "./data"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getEnv("S3_REGION", "ap-northeast-1"),
		S3Prefix:        os.Getenv("S3_PREFIX"),
		StorageTimeout:  getDuration("STORAGE_TIMEOUT", 30*time.Second),

		DefaultAlgorithm:     getEnv("DEFAULT_ALGORITHM", "aes-256-cbc"),
		DefaultKeyDerivation: getEnv("DEFAULT_KEY_DERIVATION", "pbkdf2"),

		RotationWorkers: getInt("ROTATION_WORKERS", 4),

		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		MasterKey:          os.Getenv("MASTER_KEY"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),

		OtelEnabled:      getBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "content-encryption-service"),
		OtelSamplingRate: getFloat("OTEL_SAMPLING_RATE", 0.1),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
