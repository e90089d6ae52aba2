package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBMaxConns  int
	JWTSecret   string
	RedisURL    string

	WebhookSecret       string
	WebhookMaxSkew      time.Duration
	WebhookTimeout      time.Duration
	WebhookMaxBodyBytes int64

	StorageBackend  string
	StoragePath     string
	StorageBaseURL  string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PublicBaseURL string
	S3CacheControl  string

	ImageFetchTimeout time.Duration
	VideoFetchTimeout time.Duration
	UploadTimeout     time.Duration
	MaxImageBytes     int64
	MaxVideoBytes     int64
	ThumbnailSize     int

	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// Storage backends.
const (
	StorageBackendS3         = "s3"
	StorageBackendFilesystem = "filesystem"
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		RedisURL:    os.Getenv("REDIS_URL"),

		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		WebhookMaxSkew:      time.Second * time.Duration(getEnvInt("WEBHOOK_MAX_SKEW_SECONDS", 300)),
		WebhookTimeout:      time.Second * time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 120)),
		WebhookMaxBodyBytes: getEnvInt64("WEBHOOK_MAX_BODY_BYTES", 1<<20),

		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendFilesystem)),
		StoragePath:     getEnv("STORAGE_PATH", "./data/storage"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		S3CacheControl:  os.Getenv("S3_CACHE_CONTROL"),

		ImageFetchTimeout: time.Second * time.Duration(getEnvInt("IMAGE_FETCH_TIMEOUT_SECONDS", 30)),
		VideoFetchTimeout: time.Second * time.Duration(getEnvInt("VIDEO_FETCH_TIMEOUT_SECONDS", 180)),
		UploadTimeout:     time.Second * time.Duration(getEnvInt("UPLOAD_TIMEOUT_SECONDS", 60)),
		MaxImageBytes:     getEnvInt64("MAX_IMAGE_BYTES", 25<<20),
		MaxVideoBytes:     getEnvInt64("MAX_VIDEO_BYTES", 500<<20),
		ThumbnailSize:     getEnvInt("THUMBNAIL_SIZE", 300),

		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StorageBackend {
	case StorageBackendFilesystem:
	case StorageBackendS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if cfg.WebhookTimeout <= 0 {
		return nil, fmt.Errorf("WEBHOOK_TIMEOUT_SECONDS must be positive")
	}
	// the server must not cut the connection before the handler deadline fires
	if cfg.HTTPWriteTimeout <= cfg.WebhookTimeout {
		cfg.HTTPWriteTimeout = cfg.WebhookTimeout + 10*time.Second
	}

	return cfg, nil
}

// WebhookAuthEnabled reports whether callbacks must carry a valid signature.
func (c *Config) WebhookAuthEnabled() bool {
	return c != nil && strings.TrimSpace(c.WebhookSecret) != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
