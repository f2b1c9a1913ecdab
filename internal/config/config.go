package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App    AppConfig
	Google GoogleConfig
	Sheets SheetsConfig
	Redis  RedisConfig
	Cache  CacheConfig
	Logger LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// GoogleConfig holds issuer credentials and endpoints.
type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURI      string
	TokenEndpoint    string
	UserInfoEndpoint string
	CertsEndpoint    string
}

// SheetsConfig identifies the spreadsheet backing the credential store.
type SheetsConfig struct {
	SpreadsheetID     string
	UsersSheetName    string
	ServiceAccountKey []byte
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig controls the invalidation registry.
type CacheConfig struct {
	TTLMinutes int
	Backend    string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Cache backend selectors.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	var serviceKey []byte
	if blob := os.Getenv("GOOGLE_SERVICE_ACCOUNT_KEY"); blob != "" {
		serviceKey, err = base64.StdEncoding.DecodeString(blob)
		if err != nil {
			return nil, fmt.Errorf("invalid GOOGLE_SERVICE_ACCOUNT_KEY: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "calm-productivity-backend"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Google: GoogleConfig{
			ClientID:         os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret:     os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI:      getEnv("GOOGLE_REDIRECT_URI", "postmessage"),
			TokenEndpoint:    getEnv("GOOGLE_TOKEN_ENDPOINT", "https://oauth2.googleapis.com/token"),
			UserInfoEndpoint: getEnv("GOOGLE_USERINFO_ENDPOINT", "https://www.googleapis.com/oauth2/v2/userinfo"),
			CertsEndpoint:    getEnv("GOOGLE_CERTS_ENDPOINT", "https://www.googleapis.com/oauth2/v1/certs"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:     os.Getenv("SPREADSHEET_ID"),
			UsersSheetName:    getEnv("USERS_SHEET_NAME", "Users"),
			ServiceAccountKey: serviceKey,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			TTLMinutes: getEnvAsInt("CACHE_TTL_MINUTES", 5),
			Backend:    getEnv("CACHE_BACKEND", CacheBackendMemory),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether diagnostic detail must be stripped from
// error responses.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TTL returns the invalidation mark lifetime.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
