package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Content
	ContentDir string `json:"content_dir"`
	CacheDir   string `json:"cache_dir"`
	MaxWorkers int    `json:"max_workers"`

	// Cache TTLs; PostsTTL zero means pick by environment (30s in
	// development, 5m otherwise)
	PostsTTL time.Duration `json:"posts_ttl"`
	IndexTTL time.Duration `json:"index_ttl"`

	// Redis configuration; empty URL disables the shared cache tier
	RedisURL    string `json:"redis_url"`
	RedisPrefix string `json:"redis_prefix"`

	// CloudFlare R2 Configuration
	R2AccessKey string `json:"r2_access_key"`
	R2SecretKey string `json:"r2_secret_key"`
	R2Bucket    string `json:"r2_bucket"`
	R2AccountID string `json:"r2_account_id"`
	R2Prefix    string `json:"r2_prefix"`

	// Site
	SiteURL         string `json:"site_url"`
	SiteTitle       string `json:"site_title"`
	SiteDescription string `json:"site_description"`
	IndexNowKey     string `json:"indexnow_key"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Security
	AdminAPIKey string `json:"admin_api_key"`
}

// Load loads configuration from environment variables
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// Content
		ContentDir: getEnv("CONTENT_DIR", "./content/blogs"),
		CacheDir:   getEnv("CACHE_DIR", "./public/blog-cache"),
		MaxWorkers: getEnvAsInt("MAX_WORKERS", 0),

		PostsTTL: getEnvAsDuration("CACHE_TTL", 0),
		IndexTTL: getEnvAsDuration("INDEX_CACHE_TTL", time.Minute),

		// Redis configuration
		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "contentd:"),

		// CloudFlare R2 Configuration
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", ""),
		R2AccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		R2Prefix:    getEnv("R2_PREFIX", "blog-cache"),

		// Site
		SiteURL:         getEnv("SITE_URL", "https://www.narkinsbuilders.com"),
		SiteTitle:       getEnv("SITE_TITLE", "Narkins Builders Blog"),
		SiteDescription: getEnv("SITE_DESCRIPTION", "Real estate insights, market trends and project updates from Karachi"),
		IndexNowKey:     getEnv("INDEXNOW_KEY", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	return cfg
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
