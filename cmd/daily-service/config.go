package main

import (
	"fmt"
	"os"
	"time"

	"acmdaily/internal/codeforces"
	"acmdaily/internal/common/cache"
	"acmdaily/internal/common/db"
	"acmdaily/internal/common/http/middleware"
	"acmdaily/internal/common/mq"
	"acmdaily/internal/daily"
	problemsvc "acmdaily/internal/problem/service"
	scoresvc "acmdaily/internal/score/service"
	"acmdaily/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// timeDuration wraps time.Duration for YAML strings like "5s" or "2m".
type timeDuration struct {
	value time.Duration
}

func (d *timeDuration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration failed: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration failed: %w", err)
	}
	d.value = parsed
	return nil
}

// Duration returns the underlying time.Duration, zero when unset.
func (d *timeDuration) Duration() time.Duration {
	if d == nil {
		return 0
	}
	return d.value
}

func durationOr(d *timeDuration, fallback time.Duration) time.Duration {
	if d == nil || d.value == 0 {
		return fallback
	}
	return d.value
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  *timeDuration `yaml:"readTimeout"`
	WriteTimeout *timeDuration `yaml:"writeTimeout"`
	IdleTimeout  *timeDuration `yaml:"idleTimeout"`
}

// DatabaseConfig holds MySQL settings.
type DatabaseConfig struct {
	DSN                string        `yaml:"dsn"`
	MaxOpenConnections int           `yaml:"maxOpenConnections"`
	MaxIdleConnections int           `yaml:"maxIdleConnections"`
	ConnMaxLifetime    *timeDuration `yaml:"connMaxLifetime"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig holds distribution publish settings.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientId"`
	Topic    string   `yaml:"topic"`
}

// FeedConfig holds remote judge API settings.
type FeedConfig struct {
	BaseURL         string        `yaml:"baseUrl"`
	Timeout         *timeDuration `yaml:"timeout"`
	SubmissionCount int           `yaml:"submissionCount"`
}

// PoolConfig holds tier boundaries for the problem pool.
type PoolConfig struct {
	EasyMax int `yaml:"easyMax"`
	MidMax  int `yaml:"midMax"`
}

// ReconcileConfig holds reconciliation engine settings.
type ReconcileConfig struct {
	LockTTL       *timeDuration `yaml:"lockTTL"`
	FeedTimeout   *timeDuration `yaml:"feedTimeout"`
	MaxConcurrent int           `yaml:"maxConcurrent"`
	CASRetries    int           `yaml:"casRetries"`
}

// SchedulerConfig holds trigger timing.
type SchedulerConfig struct {
	DistributeAt   string        `yaml:"distributeAt"`
	ReconcileEvery *timeDuration `yaml:"reconcileEvery"`
}

// AuthConfig holds admin endpoint protection settings.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// AppConfig holds daily-service configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    logger.Config   `yaml:"logger"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Feed      FeedConfig      `yaml:"feed"`
	Pool      PoolConfig      `yaml:"pool"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Auth      AuthConfig      `yaml:"auth"`
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
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	return &cfg, nil
}

func (c DatabaseConfig) toMySQLConfig() *db.MySQLConfig {
	mysqlCfg := db.DefaultMySQLConfig()
	mysqlCfg.DSN = c.DSN
	if c.MaxOpenConnections > 0 {
		mysqlCfg.MaxOpenConnections = c.MaxOpenConnections
	}
	if c.MaxIdleConnections > 0 {
		mysqlCfg.MaxIdleConnections = c.MaxIdleConnections
	}
	if lifetime := c.ConnMaxLifetime.Duration(); lifetime > 0 {
		mysqlCfg.ConnMaxLifetime = lifetime
	}
	return mysqlCfg
}

func (c RedisConfig) toRedisConfig() *cache.RedisConfig {
	redisCfg := cache.DefaultRedisConfig()
	redisCfg.Addr = c.Addr
	redisCfg.Password = c.Password
	redisCfg.DB = c.DB
	return redisCfg
}

func (c KafkaConfig) toKafkaConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:  c.Brokers,
		ClientID: c.ClientID,
	}
}

func (c FeedConfig) toClientConfig() codeforces.Config {
	return codeforces.Config{
		BaseURL:         c.BaseURL,
		Timeout:         c.Timeout.Duration(),
		SubmissionCount: c.SubmissionCount,
	}
}

func (c PoolConfig) toTierConfig() problemsvc.TierConfig {
	return problemsvc.TierConfig{EasyMax: c.EasyMax, MidMax: c.MidMax}
}

func (c ReconcileConfig) toServiceConfig() scoresvc.ReconcileConfig {
	return scoresvc.ReconcileConfig{
		LockTTL:       c.LockTTL.Duration(),
		FeedTimeout:   c.FeedTimeout.Duration(),
		MaxConcurrent: c.MaxConcurrent,
		CASRetries:    c.CASRetries,
	}
}

func (c SchedulerConfig) toSchedulerConfig() daily.SchedulerConfig {
	return daily.SchedulerConfig{
		DistributeAt:   c.DistributeAt,
		ReconcileEvery: c.ReconcileEvery.Duration(),
	}
}

func (c AuthConfig) toMiddlewareConfig() middleware.AuthConfig {
	return middleware.AuthConfig{Secret: c.Secret, Issuer: c.Issuer}
}
