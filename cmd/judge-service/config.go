package main

import (
	"fmt"
	"os"
	"time"

	"arbiter/internal/common/cache"
	"arbiter/internal/common/mq"
	"arbiter/internal/common/storage"
	"arbiter/internal/judge/provision"
	"arbiter/internal/judge/queue"
	"arbiter/internal/judge/registry"
	"arbiter/internal/judge/repository"
	"arbiter/internal/judge/sandbox"
	"arbiter/internal/judge/service"
	"arbiter/internal/judge/worker"
	"arbiter/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// StorageConfig selects and configures the durable blob backend.
type StorageConfig struct {
	Backend  string              `yaml:"backend"` // local, minio
	LocalDir string              `yaml:"localDir"`
	MinIO    storage.MinIOConfig `yaml:"minio"`
}

// EventsConfig holds final result event stream settings. Disabled when
// no brokers are configured.
type EventsConfig struct {
	Kafka mq.KafkaConfig `yaml:"kafka"`
	Topic string         `yaml:"topic"`
}

// CatalogConfig holds problem catalog settings.
type CatalogConfig struct {
	RootDir string `yaml:"rootDir"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logger    logger.Config      `yaml:"logger"`
	Redis     cache.RedisConfig  `yaml:"redis"`
	Storage   StorageConfig      `yaml:"storage"`
	Events    EventsConfig       `yaml:"events"`
	Catalog   CatalogConfig      `yaml:"catalog"`
	Registry  registry.Config    `yaml:"registry"`
	Sandbox   sandbox.HTTPConfig `yaml:"sandbox"`
	Provision provision.Config   `yaml:"provision"`
	Queue     queue.Config       `yaml:"queue"`
	Worker    worker.Config      `yaml:"worker"`
	Results   repository.Config  `yaml:"results"`
	Intake    service.Config     `yaml:"intake"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Catalog.RootDir == "" {
		return nil, fmt.Errorf("catalog rootDir is required")
	}
	applyRedisDefaults(&cfg.Redis)

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	switch cfg.Storage.Backend {
	case "", "local":
		cfg.Storage.Backend = "local"
		if cfg.Storage.LocalDir == "" {
			cfg.Storage.LocalDir = "data/objects"
		}
	case "minio":
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Events.Topic == "" {
		cfg.Events.Topic = "judge.result.final"
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	regDefaults := registry.DefaultConfig()
	if cfg.Registry.DBPath == "" {
		cfg.Registry.DBPath = regDefaults.DBPath
	}
	if cfg.Registry.Bucket == "" {
		cfg.Registry.Bucket = regDefaults.Bucket
	}

	sbDefaults := sandbox.DefaultHTTPConfig()
	if cfg.Sandbox.BaseURL == "" {
		cfg.Sandbox.BaseURL = sbDefaults.BaseURL
	}
	if cfg.Sandbox.Timeout == 0 {
		cfg.Sandbox.Timeout = sbDefaults.Timeout
	}

	provDefaults := provision.DefaultConfig()
	if cfg.Provision.CompileLanguage == "" {
		cfg.Provision.CompileLanguage = provDefaults.CompileLanguage
	}
	if cfg.Provision.RunTemplate == "" {
		cfg.Provision.RunTemplate = provDefaults.RunTemplate
	}

	queueDefaults := queue.DefaultConfig()
	if cfg.Queue.Capacity <= 0 {
		cfg.Queue.Capacity = queueDefaults.Capacity
	}
	if cfg.Queue.SpillHighWater <= 0 {
		cfg.Queue.SpillHighWater = queueDefaults.SpillHighWater
	}

	workerDefaults := worker.DefaultConfig()
	if cfg.Worker.Size <= 0 {
		cfg.Worker.Size = workerDefaults.Size
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = workerDefaults.PollInterval
	}

	resultDefaults := repository.DefaultConfig()
	if cfg.Results.ProgressTTL == 0 {
		cfg.Results.ProgressTTL = resultDefaults.ProgressTTL
	}
	if cfg.Results.FinalTTL == 0 {
		cfg.Results.FinalTTL = resultDefaults.FinalTTL
	}

	intakeDefaults := service.DefaultConfig()
	if cfg.Intake.MaxCodeBytes <= 0 {
		cfg.Intake.MaxCodeBytes = intakeDefaults.MaxCodeBytes
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
}

func buildObjectStorage(cfg StorageConfig) (storage.ObjectStorage, error) {
	if cfg.Backend == "minio" {
		return storage.NewMinIOStorage(cfg.MinIO)
	}
	return storage.NewLocalStorage(cfg.LocalDir)
}
