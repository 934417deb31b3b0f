package config

import (
	"errors"
	"fmt"
	"os"

	"stocktake/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Remote       RemoteConfig       `yaml:"remote"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Cache        CacheConfig        `yaml:"cache"`
	Sync         SyncConfig         `yaml:"sync"`
	Maintenance  MaintenanceConfig  `yaml:"maintenance"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Backup       BackupConfig       `yaml:"backup"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Seed         SeedConfig         `yaml:"seed"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	DeviceID    string `yaml:"device_id"`
}

type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig bounds the reference-data cache. Both knobs are tunable;
// defaults are 7 days and 1000 entries.
type CacheConfig struct {
	TTLHours   int `yaml:"ttl_hours"`
	MaxEntries int `yaml:"max_entries"`
}

type SyncConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	MaxRetries      int           `yaml:"max_retries"`
	MaxIterations   int           `yaml:"max_iterations"`
	DebounceSeconds int           `yaml:"debounce_seconds"`
	IntervalMinutes int           `yaml:"interval_minutes"`
	KeepExhausted   bool          `yaml:"keep_exhausted"`
	RetryBackoff    BackoffConfig `yaml:"retry_backoff"`
}

type BackoffConfig struct {
	InitialSeconds int     `yaml:"initial_seconds"`
	MaxSeconds     int     `yaml:"max_seconds"`
	Factor         float64 `yaml:"factor"`
}

type MaintenanceConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	MaxQueueEntries int `yaml:"max_queue_entries"`
}

type ConnectivityConfig struct {
	ProbeIntervalSeconds int `yaml:"probe_interval_seconds"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	APIKey    string             `yaml:"api_key"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type SeedConfig struct {
	CatalogPath string `yaml:"catalog_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional on devices; ignore a missing file.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Подстановка переменных окружения в YAML до парсинга
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
	if c.Remote.BaseURL == "" {
		return errors.New("remote base_url is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return errors.New("redis address is required when redis is enabled")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "stocktake"
	}
	if c.Remote.TimeoutSeconds == 0 {
		c.Remote.TimeoutSeconds = 30
	}

	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = models.DefaultCacheTTLHours
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = models.DefaultCacheMaxEntries
	}

	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = models.DefaultBatchSize
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = models.DefaultMaxRetries
	}
	if c.Sync.MaxIterations == 0 {
		c.Sync.MaxIterations = models.DefaultMaxPassIterations
	}
	if c.Sync.DebounceSeconds == 0 {
		c.Sync.DebounceSeconds = models.DefaultDebounceSeconds
	}
	if c.Sync.IntervalMinutes == 0 {
		c.Sync.IntervalMinutes = models.DefaultSyncIntervalMinutes
	}
	if c.Sync.RetryBackoff.InitialSeconds == 0 {
		c.Sync.RetryBackoff.InitialSeconds = 2
	}
	if c.Sync.RetryBackoff.MaxSeconds == 0 {
		c.Sync.RetryBackoff.MaxSeconds = 300
	}
	if c.Sync.RetryBackoff.Factor == 0 {
		c.Sync.RetryBackoff.Factor = 2
	}

	if c.Maintenance.IntervalMinutes == 0 {
		c.Maintenance.IntervalMinutes = models.DefaultMaintenanceIntervalMinutes
	}
	if c.Maintenance.MaxQueueEntries == 0 {
		c.Maintenance.MaxQueueEntries = models.DefaultMaxQueueEntries
	}

	if c.Connectivity.ProbeIntervalSeconds == 0 {
		c.Connectivity.ProbeIntervalSeconds = models.DefaultProbeIntervalSeconds
	}

	if c.API.Enabled && c.API.Port == 0 {
		c.API.Port = 8090
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}
}
