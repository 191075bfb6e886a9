// Package bootstrap builds the components shared by the api-server and
// queue-worker binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sungwon/notify-dispatch/internal/api"
	"github.com/sungwon/notify-dispatch/internal/config"
	"github.com/sungwon/notify-dispatch/internal/consent"
	"github.com/sungwon/notify-dispatch/internal/dispatch"
	"github.com/sungwon/notify-dispatch/internal/logger"
	"github.com/sungwon/notify-dispatch/internal/provider"
	"github.com/sungwon/notify-dispatch/internal/storage"
	"github.com/sungwon/notify-dispatch/internal/templates"
)

// Components are the long-lived collaborators of a dispatching process.
// DB and Redis are nil unless the configuration needs them.
type Components struct {
	DB       *storage.DB
	Redis    *redis.Client
	Consent  consent.Store
	Provider provider.Client
	Health   *provider.HealthChecker
	Dispatch *dispatch.Service

	log zerolog.Logger
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig, service string) zerolog.Logger {
	return logger.NewFromConfig(logger.LoggingConfig{
		Level:     cfg.Level,
		Output:    cfg.Output,
		FilePath:  cfg.FilePath,
		MaxSizeMB: cfg.MaxSizeMB,
		MaxFiles:  cfg.MaxFiles,
		Service:   service,
	})
}

// Build connects the configured backends and assembles the dispatch
// service. On error every connection opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *Components, err error) {
	c := &Components{log: log}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	var pg *consent.PostgresStore
	if cfg.Consent.Store == "postgres" {
		c.DB, err = storage.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		pg = consent.NewPostgresStore(c.DB.Queries())
		log.Info().Msg("database connection established")
	}

	if cfg.Redis.Addr != "" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = c.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connection established")
	}

	// A typed nil *redis.Client must not reach NewStore as a non-nil Cmdable.
	var cache redis.Cmdable
	if cfg.Consent.Cache && c.Redis != nil {
		cache = c.Redis
	}
	c.Consent, err = consent.NewStore(cfg.Consent.Store, pg, cache, cfg.Consent.CacheTTL, log)
	if err != nil {
		return nil, err
	}

	source, err := templates.NewSource(ctx, templates.Config{
		Source:     cfg.Templates.Source,
		Dir:        cfg.Templates.Dir,
		S3Bucket:   cfg.Templates.S3Bucket,
		S3Prefix:   cfg.Templates.S3Prefix,
		S3Region:   cfg.Templates.S3Region,
		S3Endpoint: cfg.Templates.S3Endpoint,
		CacheTTL:   cfg.Templates.CacheTTL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("template source: %w", err)
	}

	c.Provider, err = provider.NewClient(provider.ProviderConfig{
		Type:          cfg.Provider.Type,
		AccessToken:   cfg.Provider.AccessToken,
		PhoneNumberID: cfg.Provider.PhoneNumberID,
		APIVersion:    cfg.Provider.APIVersion,
		BaseURL:       cfg.Provider.BaseURL,
		Timeout:       cfg.Provider.Timeout,
	}, nil, log)
	if err != nil {
		return nil, err
	}
	c.Health = provider.NewHealthChecker(c.Provider, log)

	c.Dispatch = dispatch.NewService(c.Consent, templates.NewRenderer(source), c.Provider, log)
	return c, nil
}

// ReadinessChecks probes every backend this process depends on.
func (c *Components) ReadinessChecks() []api.ReadinessCheck {
	var checks []api.ReadinessCheck
	if c.DB != nil {
		checks = append(checks, api.ReadinessCheck{Name: "database", Check: c.DB.Ping})
	}
	if c.Redis != nil {
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		}})
	}
	if c.Health != nil {
		checks = append(checks, api.ReadinessCheck{Name: "provider", Check: func(context.Context) error {
			if !c.Health.IsHealthy() {
				return fmt.Errorf("provider unhealthy: %s", c.Health.Status().LastError)
			}
			return nil
		}})
	}
	return checks
}

// Close releases the connections opened by Build.
func (c *Components) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close redis")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}

// CloseQueue closes a queue backend that holds connections of its own.
func CloseQueue(q any, log zerolog.Logger) {
	if cl, ok := q.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			log.Warn().Err(err).Msg("close queue")
		}
	}
}
