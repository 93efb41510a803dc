package main

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storelane/backoffice/internal/config"
	"github.com/storelane/backoffice/internal/events"
	"github.com/storelane/backoffice/internal/lock"
	"github.com/storelane/backoffice/internal/notify"
	"github.com/storelane/backoffice/internal/obs"
	"github.com/storelane/backoffice/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 4),
		Queues:      map[string]int{"default": 1},
	})

	deliverer := notify.WebhookDeliverer{
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(envInt("CIRCUIT_WEBHOOK_MIN_REQ", 5), 0.5, 30*time.Second).WithTarget("webhook-delivery").WithLogger(logger),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: envInt("WEBHOOK_ATTEMPTS_PER_TASK", 2),
			Jitter:      0.2,
			Timeout:     envDurationMillis("WEBHOOK_REQUEST_TIMEOUT_MS", 10000),
		},
		Endpoint: cfg.WebhookEndpoint,
		Logger:   logger,
	}
	worker := notify.DeliveryWorker{
		Deliverer: deliverer,
		Locker:    lock.Locker{R: redisClient, RetryBackoff: 50 * time.Millisecond},
		LockTTL:   envDurationMillis("WEBHOOK_LOCK_TTL_MS", 30000),
	}

	mux := asynq.NewServeMux()
	mux.Handle(events.TaskTypeDeliver, worker)

	logger.Info().Str("endpoint", cfg.WebhookEndpoint).Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
