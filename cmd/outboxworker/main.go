package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chat-core/internal/bus"
	"github.com/shopmindai/chat-core/internal/config"
	"github.com/shopmindai/chat-core/internal/outbox"
	"github.com/shopmindai/chat-core/internal/storage/postgres"
)

// outboxworker is the standalone dispatcher process, run as its own
// replica set separate from cmd/server so dispatch throughput scales
// independently of the HTTP/WS surface.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	poolCfg := postgres.DefaultPoolConfig()
	poolCfg.MaxOpenConns = cfg.DBMaxOpenConns
	poolCfg.MaxIdleConns = cfg.DBMaxIdleConns

	db, err := postgres.NewDB(cfg.DatabaseURL, poolCfg)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("failed to parse REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	publisher := bus.NewPublisher(redisClient, cfg.RedisPubSubChannel)
	uow := postgres.NewFactory(db)

	dispatcherCfg := outbox.Config{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	}
	dispatcher := outbox.New(uow, publisher, dispatcherCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down outbox worker")
		cancel()
	}()

	logger.WithField("component", "outboxworker").Info("outbox dispatcher started")
	if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("outbox dispatcher stopped unexpectedly")
	}
}
