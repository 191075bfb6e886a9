package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sungwon/notify-dispatch/internal/auth"
	"github.com/sungwon/notify-dispatch/internal/queue"
	"github.com/sungwon/notify-dispatch/internal/storage"
)

// EnvPrefix prefixes every environment override, e.g.
// NOTIFY_DISPATCH_QUEUE_MODE overrides queue.mode.
const EnvPrefix = "NOTIFY_DISPATCH"

// Config holds all application configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  storage.Config  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Queue     queue.Config    `mapstructure:"queue"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Consent   ConsentConfig   `mapstructure:"consent"`
	Auth      auth.JWTConfig  `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// APIConfig holds REST API server configuration.
type APIConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig is the shared Redis used by the consent cache and readiness
// checks. The Redis queue backend has its own settings under queue.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"` // stdout or file
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// ProviderConfig selects and configures the messaging provider.
type ProviderConfig struct {
	Type          string        `mapstructure:"type"` // whatsapp or stdout
	AccessToken   string        `mapstructure:"access_token"`
	PhoneNumberID string        `mapstructure:"phone_number_id"`
	APIVersion    string        `mapstructure:"api_version"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// WebhookConfig holds the secrets shared with the provider for callbacks.
type WebhookConfig struct {
	VerifyToken string `mapstructure:"verify_token"`
	AppSecret   string `mapstructure:"app_secret"`
}

// TemplatesConfig locates template sources.
type TemplatesConfig struct {
	Source          string        `mapstructure:"source"` // local or s3
	Dir             string        `mapstructure:"dir"`
	S3Bucket        string        `mapstructure:"s3_bucket"`
	S3Prefix        string        `mapstructure:"s3_prefix"`
	S3Region        string        `mapstructure:"s3_region"`
	S3Endpoint      string        `mapstructure:"s3_endpoint"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	DefaultLanguage string        `mapstructure:"default_language"`
}

// ConsentConfig selects the consent store.
type ConsentConfig struct {
	Store    string        `mapstructure:"store"` // memory or postgres
	Cache    bool          `mapstructure:"cache"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RateLimitConfig bounds job submissions per tenant. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// setDefaults registers every key so environment overrides apply even when
// the config file omits them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", 10*time.Second)
	v.SetDefault("api.write_timeout", 60*time.Second)
	v.SetDefault("api.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.pool_min", 2)
	v.SetDefault("database.pool_max", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "logs/notify-dispatch.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_files", 5)

	q := queue.DefaultConfig()
	v.SetDefault("queue.mode", q.Mode)
	v.SetDefault("queue.type", q.Type)
	v.SetDefault("queue.sqs_queue_url", "")
	v.SetDefault("queue.sqs_dlq_url", "")
	v.SetDefault("queue.sqs_region", "")
	v.SetDefault("queue.sqs_endpoint", "")
	v.SetDefault("queue.fifo", false)
	v.SetDefault("queue.redis_addr", q.RedisAddr)
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.stream", q.Stream)
	v.SetDefault("queue.group", q.Group)
	v.SetDefault("queue.visibility_timeout", q.VisibilityTimeout)
	v.SetDefault("queue.wait_time", q.WaitTime)
	v.SetDefault("queue.batch_size", q.BatchSize)
	v.SetDefault("queue.concurrency", q.Concurrency)
	v.SetDefault("queue.max_receive_count", q.MaxReceiveCount)
	v.SetDefault("queue.dedup_window", q.DedupWindow)
	v.SetDefault("queue.retry_backoff", false)
	v.SetDefault("queue.process_timeout", q.ProcessTimeout)
	v.SetDefault("queue.shutdown_timeout", q.ShutdownTimeout)

	v.SetDefault("provider.type", "stdout")
	v.SetDefault("provider.access_token", "")
	v.SetDefault("provider.phone_number_id", "")
	v.SetDefault("provider.api_version", "v21.0")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout", 30*time.Second)

	v.SetDefault("webhook.verify_token", "")
	v.SetDefault("webhook.app_secret", "")

	v.SetDefault("templates.source", "local")
	v.SetDefault("templates.dir", "templates")
	v.SetDefault("templates.s3_bucket", "")
	v.SetDefault("templates.s3_prefix", "")
	v.SetDefault("templates.s3_region", "")
	v.SetDefault("templates.s3_endpoint", "")
	v.SetDefault("templates.cache_ttl", 5*time.Minute)
	v.SetDefault("templates.default_language", "en")

	v.SetDefault("consent.store", "memory")
	v.SetDefault("consent.cache", false)
	v.SetDefault("consent.cache_ttl", time.Minute)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.access_token_expiry", time.Hour)
	v.SetDefault("auth.issuer", "notify-dispatch")
	v.SetDefault("auth.audience", "")

	v.SetDefault("ratelimit.rps", 0.0)
	v.SetDefault("ratelimit.burst", 0)
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory; a missing file
// leaves the defaults in place. A .env file in the working directory is
// loaded into the environment first without overriding variables that are
// already set. Environment variables with prefix NOTIFY_DISPATCH_ override
// file values.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.Queue.Mode {
	case queue.ModeInline, queue.ModeQueued:
	default:
		errs = append(errs, fmt.Errorf("queue.mode must be inline or queued, got %q", c.Queue.Mode))
	}
	switch c.Queue.Type {
	case "memory", "redis":
	case "sqs":
		if c.Queue.SQSQueueURL == "" {
			errs = append(errs, errors.New("queue.sqs_queue_url is required for the sqs queue"))
		}
		// Standard queues drop the dedup and group ids that carry
		// idempotency and per-tenant ordering.
		if !c.Queue.FIFO {
			errs = append(errs, errors.New("queue.fifo must be true for the sqs queue"))
		} else if c.Queue.SQSQueueURL != "" && !strings.HasSuffix(c.Queue.SQSQueueURL, ".fifo") {
			errs = append(errs, fmt.Errorf("queue.sqs_queue_url %q is not a FIFO queue (.fifo suffix)", c.Queue.SQSQueueURL))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.type must be memory, redis or sqs, got %q", c.Queue.Type))
	}

	switch c.Consent.Store {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres consent store"))
		}
	default:
		errs = append(errs, fmt.Errorf("consent.store must be memory or postgres, got %q", c.Consent.Store))
	}
	if c.Consent.Cache && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when consent.cache is enabled"))
	}

	if c.Templates.Source == "s3" && c.Templates.S3Bucket == "" {
		errs = append(errs, errors.New("templates.s3_bucket is required for the s3 template source"))
	}

	if c.Auth.Enabled && c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("auth.signing_key is required when auth is enabled"))
	}

	return errors.Join(errs...)
}
