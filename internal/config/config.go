package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	LogLevel         string
	HTTPAddr         string
	AuthCookieSecure bool
	SessionTTL       time.Duration

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Cache CacheTTLConfig

	Provider ProviderConfig

	Quota QuotaConfig

	Refresh RefreshConfig

	BootstrapAdmin bool
}

// CacheTTLConfig carries per-entry-kind cache lifetimes.
type CacheTTLConfig struct {
	Offers        time.Duration
	Status        time.Duration
	QRCode        time.Duration
	PurchaseLists time.Duration
}

// ProviderConfig carries the upstream eSIM provisioning API settings.
type ProviderConfig struct {
	BaseURL  string
	APIKey   string
	Country  string
	PageSize int
	Timeout  time.Duration
}

// QuotaConfig carries defaults applied to newly provisioned tenants.
type QuotaConfig struct {
	DefaultDailyLimit  int
	DefaultMaxGBPerSIM int
}

// RefreshConfig bounds the best-effort background status refresh.
type RefreshConfig struct {
	RecentCount int
	Workers     int
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:          getenv("APP_SERVICE", "esimgate"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		LogLevel:         strings.ToLower(getenv("LOG_LEVEL", "info")),
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure: authCookieSecure,
		SessionTTL:       getenvDuration("SESSION_TTL", 24*time.Hour),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "esimgate"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		CacheBackend:  normalizeCacheBackend(getenv("CACHE_BACKEND", CacheBackendMemory)),
		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Cache: CacheTTLConfig{
			Offers:        getenvDuration("CACHE_TTL_OFFERS", 300*time.Second),
			Status:        getenvDuration("CACHE_TTL_STATUS", 30*time.Second),
			QRCode:        getenvDuration("CACHE_TTL_QRCODE", time.Hour),
			PurchaseLists: getenvDuration("CACHE_TTL_PURCHASES", 60*time.Second),
		},

		Provider: ProviderConfig{
			BaseURL:  getenv("PROVIDER_API_BASE", "https://api.zendit.io/v1"),
			APIKey:   strings.TrimSpace(getenv("PROVIDER_API_KEY", "")),
			Country:  strings.ToUpper(getenv("PROVIDER_COUNTRY", "TR")),
			PageSize: getenvInt("PROVIDER_PAGE_SIZE", 10),
			Timeout:  getenvDuration("PROVIDER_TIMEOUT", 15*time.Second),
		},

		Quota: QuotaConfig{
			DefaultDailyLimit:  getenvInt("QUOTA_DEFAULT_DAILY_LIMIT", 5),
			DefaultMaxGBPerSIM: getenvInt("QUOTA_DEFAULT_MAX_GB", 20),
		},

		Refresh: RefreshConfig{
			RecentCount: getenvInt("REFRESH_RECENT_COUNT", 3),
			Workers:     getenvInt("REFRESH_WORKERS", 4),
		},

		BootstrapAdmin: getenvBool("BOOTSTRAP_ADMIN", true),
	}
}

func normalizeCacheBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CacheBackendRedis:
		return CacheBackendRedis
	default:
		return CacheBackendMemory
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
