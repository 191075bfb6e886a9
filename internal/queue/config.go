package queue

import "time"

// Submission modes.
const (
	ModeInline = "inline"
	ModeQueued = "queued"
)

// Config holds configuration for the queue system.
type Config struct {
	// Mode selects how intake hands off jobs: "inline" (default) or "queued".
	Mode string `mapstructure:"mode"`
	// Type selects the queue backend: "memory" (default), "redis" or "sqs".
	Type string `mapstructure:"type"`

	SQSQueueURL string `mapstructure:"sqs_queue_url"`
	SQSDLQURL   string `mapstructure:"sqs_dlq_url"`
	SQSRegion   string `mapstructure:"sqs_region"`
	SQSEndpoint string `mapstructure:"sqs_endpoint"`
	FIFO        bool   `mapstructure:"fifo"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Stream        string `mapstructure:"stream"`
	Group         string `mapstructure:"group"`

	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	WaitTime          time.Duration `mapstructure:"wait_time"`
	BatchSize         int           `mapstructure:"batch_size"`
	Concurrency       int           `mapstructure:"concurrency"`
	MaxReceiveCount   int           `mapstructure:"max_receive_count"`
	DedupWindow       time.Duration `mapstructure:"dedup_window"`
	RetryBackoff      bool          `mapstructure:"retry_backoff"`
	ProcessTimeout    time.Duration `mapstructure:"process_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeInline,
		Type:              "memory",
		RedisAddr:         "localhost:6379",
		Stream:            "notify:jobs",
		Group:             "dispatchers",
		VisibilityTimeout: 60 * time.Second,
		WaitTime:          20 * time.Second,
		BatchSize:         10,
		Concurrency:       5,
		MaxReceiveCount:   5,
		DedupWindow:       5 * time.Minute,
		ProcessTimeout:    30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

func (c Config) receiveOptions() ReceiveOptions {
	return ReceiveOptions{
		MaxMessages:       c.BatchSize,
		WaitTime:          c.WaitTime,
		VisibilityTimeout: c.VisibilityTimeout,
	}
}
