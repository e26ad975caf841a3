package config

import (
	"os"
	"strconv"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicBase string
}

type Config struct {
	PublisherBaseURL string
	PublisherAPIKey  string
	RewriteBaseURL   string
	RewriteAPIKeys   string
	RewriteModel     string
	PostgresURI      string
	RedisURI         string
	FrontendURL      string
	R2               R2
	SecretKey        string
	CookieName       string
	APIKey           string
	StorageQuota     int64
}

func LoadConfig() *Config {
	return &Config{
		PublisherBaseURL: getEnv("PUBLISHER_BASE_URL", "https://public-api.robopost.app/v1"),
		PublisherAPIKey:  getEnv("PUBLISHER_API_KEY", ""),
		RewriteBaseURL:   getEnv("REWRITE_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		RewriteAPIKeys:   getEnv("REWRITE_API_KEYS", ""),
		RewriteModel:     getEnv("REWRITE_MODEL", "gemini-2.5-flash-lite-preview-06-17"),
		PostgresURI:      getEnv("POSTGRES_URI", ""),
		RedisURI:         getEnv("REDIS_URI", ""),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicBase: getEnv("R2_PUBLIC_BASE", ""),
		},
		SecretKey:    getEnv("SECRET_KEY", ""),
		CookieName:   getEnv("COOKIE_NAME", "postpilot_session"),
		APIKey:       getEnv("API_KEY", ""),
		StorageQuota: getEnvInt64("STORAGE_QUOTA_BYTES", 10*1024*1024),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
