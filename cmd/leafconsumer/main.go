package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chat-core/internal/app/service"
	"github.com/shopmindai/chat-core/internal/clock"
	"github.com/shopmindai/chat-core/internal/config"
	"github.com/shopmindai/chat-core/internal/ingress"
	"github.com/shopmindai/chat-core/internal/storage/postgres"
)

// leafconsumer is the standalone ingress process reading order/user
// events off the external event stream, run as its own replica set
// separate from cmd/server so consumer-group membership doesn't churn
// with HTTP/WS deploys.
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

	uow := postgres.NewFactory(db)
	sysClock := clock.System{}

	conversationService := service.NewConversationService(uow, sysClock)
	messageService := service.NewMessageService(uow, sysClock)

	consumer := ingress.NewConsumer(cfg.KafkaBrokers, cfg.LeafEventsStream, cfg.LeafEventsGroup,
		conversationService, messageService, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down leaf events consumer")
		cancel()
	}()

	if err := consumer.Run(ctx); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("leaf events consumer stopped unexpectedly")
	}
}
