package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Grading   GradingConfig   `mapstructure:"grading"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ArchiveConfig 成绩册发布后归档到 MinIO 的配置
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// GradingConfig 评分与成绩同步策略
type GradingConfig struct {
	// 是否允许测验成绩同步写入已发布/已锁定的成绩册（补录政策）
	AllowPublishedSync bool          `mapstructure:"allow_published_sync"`
	SyncMaxRetries     int           `mapstructure:"sync_max_retries"`
	SyncRetryInterval  time.Duration `mapstructure:"sync_retry_seconds"`
	SyncPollInterval   time.Duration `mapstructure:"sync_poll_seconds"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CAMPUS_EDU")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Archive / MinIO
	viper.BindEnv("archive.enabled", "ARCHIVE_ENABLED")
	viper.BindEnv("archive.endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("archive.access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("archive.secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("archive.bucket", "MINIO_BUCKET")

	// Grading policy
	viper.BindEnv("grading.allow_published_sync", "GRADING_ALLOW_PUBLISHED_SYNC")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	cfg.Grading.SyncRetryInterval = cfg.Grading.SyncRetryInterval * time.Second
	cfg.Grading.SyncPollInterval = cfg.Grading.SyncPollInterval * time.Second
	if cfg.Grading.SyncMaxRetries <= 0 {
		cfg.Grading.SyncMaxRetries = 5
	}
	if cfg.Grading.SyncRetryInterval <= 0 {
		cfg.Grading.SyncRetryInterval = 30 * time.Second
	}
	if cfg.Grading.SyncPollInterval <= 0 {
		cfg.Grading.SyncPollInterval = 5 * time.Second
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	return &cfg, nil
}
