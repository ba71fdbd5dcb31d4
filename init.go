package main

import (
	"context"

	"github.com/hamta/tarabar/internal/cache"
	"github.com/hamta/tarabar/internal/config"
	"github.com/hamta/tarabar/internal/model"
	"github.com/hamta/tarabar/internal/queue"
	"github.com/hamta/tarabar/internal/sms"
	"github.com/hamta/tarabar/internal/store"
	"github.com/hamta/tarabar/internal/telemetry"
	"github.com/hamta/tarabar/pkg/gateway"
	"github.com/hamta/tarabar/pkg/gateway/deka"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
	return shutdown, err
}

// initStore opens the Postgres store when a DSN is configured and falls back
// to the in-memory store otherwise.
func initStore(cfg *config.Config, logger *otelzap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("No DATABASE_URL configured, using in-memory store")
		return store.NewMemory(), nil
	}

	var key []byte
	if cfg.CredentialKey != "" {
		key = []byte(cfg.CredentialKey)
	}
	pg, err := store.NewPostgres(cfg.DatabaseURL, key)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

// initQueueAndCache builds the job queue and shared token cache, backed by
// Redis when configured and by in-process implementations otherwise.
func initQueueAndCache(cfg *config.Config, logger *otelzap.Logger) (queue.Queue, gateway.TokenCache) {
	if cfg.RedisURL == "" {
		logger.Warn("No REDIS_URL configured, using in-process queue and cache")
		return queue.NewMemory(0), cache.NewMemory()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("Invalid REDIS_URL, using in-process queue and cache", zap.Error(err))
		return queue.NewMemory(0), cache.NewMemory()
	}

	client := redis.NewClient(opts)
	return queue.NewRedis(client, cfg.QueueKey), cache.NewRedis(client)
}

func initGatewayRegistry(cfg *config.Config, tokenCache gateway.TokenCache, logger *otelzap.Logger) *gateway.Registry {
	registry := gateway.NewRegistry()

	dekaCfg := deka.Config{
		BaseURL: cfg.DekaBaseURL,
		Referer: cfg.DekaReferer,
		UseMock: cfg.DekaUseMock,
	}
	registry.Register("deka", func(p *model.Provider) gateway.Gateway {
		return deka.New(p, dekaCfg, tokenCache, logger)
	})

	return registry
}

func initSMSGateway(cfg *config.Config, logger *otelzap.Logger) sms.Gateway {
	if cfg.KavenegarAPIKey == "" {
		logger.Warn("No KAVENEGAR_API_KEY configured, SMS actions will be skipped")
		return nil
	}
	return sms.NewKavenegar(sms.KavenegarConfig{APIKey: cfg.KavenegarAPIKey}, logger)
}
