package config

import (
	"os"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-core/internal/email"
	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/router"
	"github.com/jwalitptl/clinic-core/internal/service/scheduling"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-core/pkg/worker"
)

func (c *OutboxConfig) ToWorkerConfig(channel string) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		Retention:     c.Retention,
		Channels:      map[string]string{model.NotificationEventType: channel},
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *LoggingConfig) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:  logger.ParseLevel(c.Level),
		Output: os.Stdout,
		JSON:   c.JSON,
		File: logger.FileConfig{
			Enabled:    c.File != "",
			Path:       c.File,
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAgeDays: c.MaxAgeDays,
			Compress:   c.Compress,
		},
	}
}

func (c *SchedulingConfig) ToEngineConfig() scheduling.Config {
	return scheduling.Config{
		DefaultOpen:  c.DefaultOpen,
		DefaultClose: c.DefaultClose,
		MinLeadTime:  c.SelfService.MinLeadTime,
		MaxHorizon:   c.SelfService.MaxHorizon,
	}
}

func (c *SMTPConfig) ToSMTPConfig() email.SMTPConfig {
	return email.SMTPConfig{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		UseTLS:   c.Port == 465,
	}
}

func (c *Config) ToRouterConfig() router.RouterConfig {
	return router.RouterConfig{
		Mode:             c.Server.Mode,
		RateLimitEnabled: c.RateLimit.Enabled,
		RateLimit:        rate.Limit(c.RateLimit.RequestsPerSecond),
		RateBurst:        c.RateLimit.Burst,
		RateIdleTTL:      c.RateLimit.IdleTTL,
		RequestTimeout:   c.Server.RequestTimeout,
		MaxBodyBytes:     c.Server.MaxBodyBytes,
		MetricsPath:      c.Monitoring.MetricsPath,
	}
}
