package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"tablequeue/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      QueueConfig      `yaml:"queue"`
	OTP        OTPConfig        `yaml:"otp"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type DatabaseConfig struct {
	Driver string      `yaml:"driver"`
	Path   string      `yaml:"path"`
	Mongo  MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type QueueConfig struct {
	// AverageServiceTime minutes per table turnover
	AverageServiceTime int    `yaml:"average_service_time"`
	NearbyLimit        int    `yaml:"nearby_limit"`
	Timezone           string `yaml:"timezone"`
	// ReminderInterval seconds between nearby sweeps; 0 disables the worker
	ReminderInterval int `yaml:"reminder_interval"`
	ReminderRetries  int `yaml:"reminder_retries"`
}

// Location resolves the configured timezone, falling back to local time.
func (c QueueConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

type OTPConfig struct {
	TTL        int `yaml:"ttl"`
	SendLimit  int `yaml:"send_limit"`
	SendWindow int `yaml:"send_window"`
}

type NotifierConfig struct {
	NATS     NATSConfig        `yaml:"nats"`
	PubNub   PubNubConfig      `yaml:"pubnub"`
	Redis    RedisNotifyConfig `yaml:"redis"`
	Telegram TelegramConfig    `yaml:"telegram"`
}

// TelegramConfig routes shop events to a staff chat.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
	Debug  bool   `yaml:"debug"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type PubNubConfig struct {
	PublishKey   string `yaml:"publish_key"`
	SubscribeKey string `yaml:"subscribe_key"`
	SecretKey    string `yaml:"secret_key"`
	UserID       string `yaml:"user_id"`
}

type RedisNotifyConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

type BackupConfig struct {
	Enabled bool `yaml:"enabled"`
	// Interval seconds between snapshots
	Interval      int    `yaml:"interval"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverMongo:
		if c.Database.Mongo.URL == "" {
			return errors.New("database.mongo.url is required for mongo driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Queue.AverageServiceTime <= 0 {
		return errors.New("queue.average_service_time must be positive")
	}
	if _, err := c.Queue.Location(); err != nil {
		return fmt.Errorf("queue.timezone: %w", err)
	}

	seen := make(map[string]bool, len(c.API.Auth.APIKeys))
	for _, k := range c.API.Auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Mongo.Name == "" {
		c.Database.Mongo.Name = "tablequeue"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 4000
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Queue.AverageServiceTime == 0 {
		c.Queue.AverageServiceTime = models.DefaultAverageServiceTime
	}
	if c.Queue.NearbyLimit == 0 {
		c.Queue.NearbyLimit = models.DefaultNearbyLimit
	}
	if c.Queue.ReminderRetries == 0 {
		c.Queue.ReminderRetries = 3
	}

	if c.OTP.TTL == 0 {
		c.OTP.TTL = models.DefaultOtpTTL
	}
	if c.OTP.SendLimit == 0 {
		c.OTP.SendLimit = models.DefaultOtpSendLimit
	}
	if c.OTP.SendWindow == 0 {
		c.OTP.SendWindow = models.DefaultOtpSendWindow
	}

	if c.Notifier.NATS.SubjectPrefix == "" {
		c.Notifier.NATS.SubjectPrefix = "shops"
	}
	if c.Notifier.Redis.ChannelPrefix == "" {
		c.Notifier.Redis.ChannelPrefix = "tablequeue"
	}

	if c.Backup.Enabled && c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * 60 * 60
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./data/backups"
	}
}
