package config

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	StoreDriverJSON     = "json"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	ServerPort  string
	StoreDriver string
	DataDir     string
	DatabaseURL string
	SQLitePath  string

	JWTSecret     string
	TokenTTLHours int
	BcryptCost    int
	AdminToken    string
	AdminEmails   []string

	CacheTTLMinutes int
	CacheMaxSize    int

	LogLevel  string
	LogFormat string
	LogFile   string

	EmailHost     string
	EmailPort     int
	EmailUser     string
	EmailPassword string
	EmailFrom     string
	WebhookURL    string
	PublicBaseURL string

	NotifyWorkers   int
	NotifyQueueSize int
	RedisURL        string
	NotifyStream    string
	NotifyGroup     string

	RateLimitRPS   float64
	RateLimitBurst int

	OpeningAlertSchedule string
	CacheCleanupSchedule string
	MetricsEnabled       bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("STORE_DRIVER", StoreDriverJSON)
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "./data/ipo-tracker.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL_HOURS", 168)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("ADMIN_TOKEN", "")
	v.SetDefault("ADMIN_EMAILS", "")
	v.SetDefault("CACHE_TTL_MINUTES", 5)
	v.SetDefault("CACHE_MAX_SIZE", 1000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("EMAIL_HOST", "")
	v.SetDefault("EMAIL_PORT", 587)
	v.SetDefault("EMAIL_USER", "")
	v.SetDefault("EMAIL_PASSWORD", "")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("APP_BASE_URL", "http://localhost:5000")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_QUEUE_SIZE", 100)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("NOTIFY_STREAM", "ipo-tracker:notifications")
	v.SetDefault("NOTIFY_GROUP", "ipo-tracker-mailers")
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("OPENING_ALERT_SCHEDULE", "0 9 * * *")
	v.SetDefault("CACHE_CLEANUP_SCHEDULE", "@every 10m")
	v.SetDefault("METRICS_ENABLED", true)
}

// LoadConfig reads .env (if present), the optional CONFIG_FILE and the environment.
func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			logrus.WithError(err).Warnf("Could not read config file %s, continuing with environment", path)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		ServerPort:           v.GetString("SERVER_PORT"),
		StoreDriver:          strings.ToLower(v.GetString("STORE_DRIVER")),
		DataDir:              v.GetString("DATA_DIR"),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		SQLitePath:           v.GetString("SQLITE_PATH"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		TokenTTLHours:        v.GetInt("TOKEN_TTL_HOURS"),
		BcryptCost:           v.GetInt("BCRYPT_COST"),
		AdminToken:           v.GetString("ADMIN_TOKEN"),
		AdminEmails:          splitList(v.GetString("ADMIN_EMAILS")),
		CacheTTLMinutes:      v.GetInt("CACHE_TTL_MINUTES"),
		CacheMaxSize:         v.GetInt("CACHE_MAX_SIZE"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
		LogFile:              v.GetString("LOG_FILE"),
		EmailHost:            v.GetString("EMAIL_HOST"),
		EmailPort:            v.GetInt("EMAIL_PORT"),
		EmailUser:            v.GetString("EMAIL_USER"),
		EmailPassword:        v.GetString("EMAIL_PASSWORD"),
		EmailFrom:            v.GetString("EMAIL_FROM"),
		WebhookURL:           v.GetString("NOTIFY_WEBHOOK_URL"),
		PublicBaseURL:        strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		NotifyWorkers:        v.GetInt("NOTIFY_WORKERS"),
		NotifyQueueSize:      v.GetInt("NOTIFY_QUEUE_SIZE"),
		RedisURL:             v.GetString("REDIS_URL"),
		NotifyStream:         v.GetString("NOTIFY_STREAM"),
		NotifyGroup:          v.GetString("NOTIFY_GROUP"),
		RateLimitRPS:         v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:       v.GetInt("RATE_LIMIT_BURST"),
		OpeningAlertSchedule: v.GetString("OPENING_ALERT_SCHEDULE"),
		CacheCleanupSchedule: v.GetString("CACHE_CLEANUP_SCHEDULE"),
		MetricsEnabled:       v.GetBool("METRICS_ENABLED"),
	}

	if cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.EmailUser
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = randomSecret()
		logrus.Warn("JWT_SECRET is not set, generated a per-process secret; tokens will not survive a restart")
	}

	return cfg
}

// GetTokenTTL returns the session token lifetime
func (c *Config) GetTokenTTL() time.Duration {
	if c.TokenTTLHours <= 0 {
		logrus.Warnf("Invalid TOKEN_TTL_HOURS value: %d, using default 7 days", c.TokenTTLHours)
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// GetCacheTTL returns the catalog cache TTL
func (c *Config) GetCacheTTL() time.Duration {
	if c.CacheTTLMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// IsAdminEmail reports whether email is configured to receive the admin role
func (c *Config) IsAdminEmail(email string) bool {
	for _, candidate := range c.AdminEmails {
		if strings.EqualFold(candidate, strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

// Unified folds the flat environment settings into the shared tuning configuration.
func (c *Config) Unified() *shared.UnifiedConfiguration {
	unified := shared.NewDefaultUnifiedConfiguration()
	unified.Cache.DefaultTTL = c.GetCacheTTL()
	unified.Cache.MaxSize = c.CacheMaxSize
	unified.Notification.Workers = c.NotifyWorkers
	unified.Notification.QueueSize = c.NotifyQueueSize
	unified.RateLimit.RequestsPerSecond = c.RateLimitRPS
	unified.RateLimit.Burst = c.RateLimitBurst
	unified.Logging.Level = c.LogLevel
	unified.Logging.Format = c.LogFormat
	unified.Logging.FilePath = c.LogFile
	unified.ValidateAndApplyDefaults()
	return unified
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logrus.WithError(err).Fatal("Failed to generate JWT secret")
	}
	return hex.EncodeToString(buf)
}
