package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config 应用配置
type Config struct {
	Env         string
	Port        string
	DatabaseURL string `validate:"required"`

	// TMDB 元数据提供方
	TMDBAPIKey      string
	TMDBBaseURL     string `validate:"required,url"`
	TMDBImageBase   string
	ProviderTimeout time.Duration `validate:"gt=0"`

	// 限流：官方上限 40 次 / 10 秒
	RateLimitTokens  int           `validate:"gt=0"`
	RateLimitWindow  time.Duration `validate:"gt=0"`
	RateLimitMaxWait time.Duration `validate:"gt=0"`

	// 元数据缓存
	CacheTTL  time.Duration `validate:"gt=0"`
	CacheSize int           `validate:"gt=0"`

	// 推荐引擎参数
	ContentWeight       float64 `validate:"gte=0,lte=1"`
	CollaborativeWeight float64 `validate:"gte=0,lte=1"`
	KNeighbors          int     `validate:"gt=0"`
	StaleThreshold      int     `validate:"gt=0"`
	MinCatalogSize      int
	DefaultTopN         int     `validate:"gt=0"`
	MaxTopN             int     `validate:"gt=0"`
	RecencyBoostCap     float64 `validate:"gte=1"`
	PopularityBoostCap  float64 `validate:"gte=1"`
}

// Load 加载配置（权重与加成上限是线上默认策略，调整前先看清楚）
func Load() (*Config, error) {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "movierec")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "5006"),
		DatabaseURL: dbURL,

		TMDBAPIKey:      getEnv("TMDB_API_KEY", ""),
		TMDBBaseURL:     getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBase:   getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500"),
		ProviderTimeout: getEnvDuration("TMDB_REQUEST_TIMEOUT", 10*time.Second),

		RateLimitTokens:  getEnvInt("TMDB_RATE_TOKENS", 40),
		RateLimitWindow:  getEnvDuration("TMDB_RATE_WINDOW", 10*time.Second),
		RateLimitMaxWait: getEnvDuration("TMDB_RATE_MAX_WAIT", 2*time.Second),

		CacheTTL:  getEnvDuration("CACHE_TTL", 24*time.Hour),
		CacheSize: getEnvInt("CACHE_SIZE", 1000),

		ContentWeight:       getEnvFloat("CONTENT_WEIGHT", 0.4),
		CollaborativeWeight: getEnvFloat("COLLABORATIVE_WEIGHT", 0.6),
		KNeighbors:          getEnvInt("K_NEIGHBORS", 10),
		StaleThreshold:      getEnvInt("STALE_THRESHOLD", 20),
		MinCatalogSize:      getEnvInt("MIN_CATALOG_SIZE", 10),
		DefaultTopN:         getEnvInt("DEFAULT_TOP_N", 10),
		MaxTopN:             getEnvInt("MAX_TOP_N", 50),
		RecencyBoostCap:     getEnvFloat("RECENCY_BOOST_CAP", 1.2),
		PopularityBoostCap:  getEnvFloat("POPULARITY_BOOST_CAP", 1.15),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
