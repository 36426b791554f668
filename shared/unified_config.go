package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// UnifiedConfiguration holds the tuning parameters shared by all components
type UnifiedConfiguration struct {
	Database     DatabaseConfig     `json:"database"`
	Cache        CacheConfig        `json:"cache"`
	Notification NotificationConfig `json:"notification"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
	Logging      LoggingConfig      `json:"logging"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// CacheConfig holds catalog cache configuration
type CacheConfig struct {
	DefaultTTL time.Duration `json:"default_ttl"`
	MaxSize    int           `json:"max_size"`
}

// NotificationConfig holds dispatcher sizing and delivery retry settings
type NotificationConfig struct {
	Workers          int           `json:"workers"`
	QueueSize        int           `json:"queue_size"`
	SendTimeout      time.Duration `json:"send_timeout"`
	MaxRetryAttempts int           `json:"max_retries"`
}

// RateLimitConfig holds per-client limits for the public endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	Burst             int           `json:"burst"`
	IdleTTL           time.Duration `json:"idle_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	FilePath    string `json:"file_path"`
	MaxSizeMB   int    `json:"max_size_mb"`
	MaxBackups  int    `json:"max_backups"`
	MaxAgeDays  int    `json:"max_age_days"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL: 5 * time.Minute,
			MaxSize:    1000,
		},
		Notification: NotificationConfig{
			Workers:          2,
			QueueSize:        100,
			SendTimeout:      30 * time.Second,
			MaxRetryAttempts: 2,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
			IdleTTL:           10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			MaxSizeMB:   100,
			MaxBackups:  7,
			MaxAgeDays:  30,
			ServiceName: "ipo-tracker",
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	defaults := NewDefaultUnifiedConfiguration()

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
		logger.Debug("Applied default Database.MaxOpenConns")
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
		logger.Debug("Applied default Database.MaxIdleConns")
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaults.Database.ConnMaxLifetime
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}
	if c.Database.ConnMaxIdleTime <= 0 {
		c.Database.ConnMaxIdleTime = defaults.Database.ConnMaxIdleTime
		logger.Debug("Applied default Database.ConnMaxIdleTime")
	}
	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = defaults.Database.PingTimeout
		logger.Debug("Applied default Database.PingTimeout")
	}

	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = defaults.Cache.DefaultTTL
		logger.Debug("Applied default Cache.DefaultTTL")
	}
	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = defaults.Cache.MaxSize
		logger.Debug("Applied default Cache.MaxSize")
	}

	if c.Notification.Workers <= 0 {
		c.Notification.Workers = defaults.Notification.Workers
		logger.Debug("Applied default Notification.Workers")
	}
	if c.Notification.QueueSize <= 0 {
		c.Notification.QueueSize = defaults.Notification.QueueSize
		logger.Debug("Applied default Notification.QueueSize")
	}
	if c.Notification.SendTimeout <= 0 {
		c.Notification.SendTimeout = defaults.Notification.SendTimeout
		logger.Debug("Applied default Notification.SendTimeout")
	}
	if c.Notification.MaxRetryAttempts < 0 {
		c.Notification.MaxRetryAttempts = defaults.Notification.MaxRetryAttempts
		logger.Debug("Applied default Notification.MaxRetryAttempts")
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = defaults.RateLimit.RequestsPerSecond
		logger.Debug("Applied default RateLimit.RequestsPerSecond")
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaults.RateLimit.Burst
		logger.Debug("Applied default RateLimit.Burst")
	}
	if c.RateLimit.IdleTTL <= 0 {
		c.RateLimit.IdleTTL = defaults.RateLimit.IdleTTL
		logger.Debug("Applied default RateLimit.IdleTTL")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
		logger.Debug("Applied default Logging.Level")
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
		logger.Debug("Applied default Logging.Format")
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaults.Logging.MaxSizeMB
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = defaults.Logging.MaxBackups
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = defaults.Logging.MaxAgeDays
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = defaults.Logging.ServiceName
		logger.Debug("Applied default Logging.ServiceName")
	}
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFromJSON deserializes configuration from JSON
func (c *UnifiedConfiguration) LoadFromJSON(jsonData []byte) error {
	if err := json.Unmarshal(jsonData, c); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.ValidateAndApplyDefaults()
	return nil
}
