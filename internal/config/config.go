package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultPath = "config/config.yaml"

type AppConf struct {
	Env            string `mapstructure:"env"`
	Port           int    `mapstructure:"port"`
	ShutdownSecond int    `mapstructure:"shutdown_seconds"`
	MaxUploadMB    int    `mapstructure:"max_upload_mb"`
}

type StorageConf struct {
	Driver          string `mapstructure:"driver"`
	Root            string `mapstructure:"root"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	RollbackSeconds int    `mapstructure:"rollback_seconds"`
}

type AWSConf struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
}

type S3Conf struct {
	PathStyle bool `mapstructure:"path_style"`
}

type BreakerConf struct {
	MaxFailures     uint32 `mapstructure:"max_failures"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

type MongoConf struct {
	URI                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	Collection         string `mapstructure:"collection"`
	PropertyCollection string `mapstructure:"property_collection"`
	AccountCollection  string `mapstructure:"account_collection"`
}

type SQLiteConf struct {
	Path          string `mapstructure:"path"`
	PropertyTable string `mapstructure:"property_table"`
	AccountTable  string `mapstructure:"account_table"`
}

type MetadataConf struct {
	Driver string     `mapstructure:"driver"`
	SQLite SQLiteConf `mapstructure:"sqlite"`
	Mongo  MongoConf  `mapstructure:"mongodb"`
}

type KafkaConf struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConf struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

type JWTConf struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	AdminRole     string `mapstructure:"admin_role"`
}

type EncoderConf struct {
	Workers int `mapstructure:"workers"`
	Quality int `mapstructure:"quality"`
}

type Config struct {
	App       AppConf       `mapstructure:"app"`
	Storage   StorageConf   `mapstructure:"storage"`
	AWS       AWSConf       `mapstructure:"aws"`
	S3        S3Conf        `mapstructure:"s3"`
	Breaker   BreakerConf   `mapstructure:"breaker"`
	Metadata  MetadataConf  `mapstructure:"metadata"`
	Kafka     KafkaConf     `mapstructure:"kafka"`
	Redis     RedisConf     `mapstructure:"redis"`
	RateLimit RateLimitConf `mapstructure:"ratelimit"`
	JWT       JWTConf       `mapstructure:"jwt"`
	Encoder   EncoderConf   `mapstructure:"encoder"`

	// derived
	ShutdownTimeout time.Duration
	StorageTimeout  time.Duration
	RollbackTimeout time.Duration
	PublishTimeout  time.Duration
	BreakerInterval time.Duration
	BreakerTimeout  time.Duration
	MaxUploadBytes  int64
}

// Path returns CONFIG_PATH or the default config location.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.port", 8085)
	v.SetDefault("app.shutdown_seconds", 15)
	v.SetDefault("app.max_upload_mb", 20)
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.root", "./data")
	v.SetDefault("storage.timeout_seconds", 30)
	v.SetDefault("storage.rollback_seconds", 30)
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.bucket", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("s3.path_style", false)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.interval_seconds", 60)
	v.SetDefault("breaker.timeout_seconds", 30)
	v.SetDefault("metadata.driver", "sqlite")
	v.SetDefault("metadata.sqlite.path", "./data/images.db")
	v.SetDefault("metadata.sqlite.property_table", "properties")
	v.SetDefault("metadata.sqlite.account_table", "accounts")
	v.SetDefault("metadata.mongodb.uri", "")
	v.SetDefault("metadata.mongodb.database", "images")
	v.SetDefault("metadata.mongodb.collection", "images")
	v.SetDefault("metadata.mongodb.property_collection", "properties")
	v.SetDefault("metadata.mongodb.account_collection", "accounts")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "image-events")
	v.SetDefault("kafka.timeout_seconds", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.per_minute", 60)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.admin_role", "admin")
	v.SetDefault("encoder.workers", 0)
	v.SetDefault("encoder.quality", 100)
}

// Load reads .env (if present), then the YAML file at path. Every key can
// be overridden from the environment, e.g. APP_STORAGE_DRIVER=s3.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.App.ShutdownSecond <= 0 {
		cfg.App.ShutdownSecond = 15
	}
	if cfg.App.MaxUploadMB <= 0 {
		cfg.App.MaxUploadMB = 20
	}
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSecond) * time.Second
	cfg.StorageTimeout = time.Duration(cfg.Storage.TimeoutSeconds) * time.Second
	cfg.RollbackTimeout = time.Duration(cfg.Storage.RollbackSeconds) * time.Second
	cfg.PublishTimeout = time.Duration(cfg.Kafka.TimeoutSeconds) * time.Second
	cfg.BreakerInterval = time.Duration(cfg.Breaker.IntervalSeconds) * time.Second
	cfg.BreakerTimeout = time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second
	cfg.MaxUploadBytes = int64(cfg.App.MaxUploadMB) * 1024 * 1024

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "local":
		if c.Storage.Root == "" {
			return fmt.Errorf("config: storage.root is required for the local driver")
		}
	case "s3":
		if c.AWS.Bucket == "" {
			return fmt.Errorf("config: aws.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Metadata.Driver {
	case "sqlite":
		if c.Metadata.SQLite.Path == "" {
			return fmt.Errorf("config: metadata.sqlite.path is required")
		}
	case "mongo":
		if c.Metadata.Mongo.URI == "" {
			return fmt.Errorf("config: metadata.mongodb.uri is required")
		}
	default:
		return fmt.Errorf("config: unknown metadata.driver %q", c.Metadata.Driver)
	}
	return nil
}

func (c *Config) Dev() bool { return c.App.Env == "development" }
