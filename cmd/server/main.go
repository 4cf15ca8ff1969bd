package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chat-core/internal/app/service"
	"github.com/shopmindai/chat-core/internal/authn"
	"github.com/shopmindai/chat-core/internal/bus"
	"github.com/shopmindai/chat-core/internal/clock"
	"github.com/shopmindai/chat-core/internal/config"
	"github.com/shopmindai/chat-core/internal/metrics"
	"github.com/shopmindai/chat-core/internal/session"
	"github.com/shopmindai/chat-core/internal/storage/postgres"
	"github.com/shopmindai/chat-core/internal/wsapi"
)

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

	uow := postgres.NewFactory(db)
	sysClock := clock.System{}

	messageService := service.NewMessageService(uow, sysClock)
	readStateService := service.NewReadStateService(uow, sysClock)

	registry := session.NewRegistry()
	bridge := session.NewBridge(registry, logger)

	subscriber := bus.NewSubscriber(redisClient, cfg.RedisPubSubChannel, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := subscriber.Run(ctx, bridge.Handle); err != nil && err != context.Canceled {
			logger.WithError(err).Error("bus subscriber stopped")
		}
	}()

	var verifier authn.TokenVerifier
	switch cfg.JWTVerifyMode {
	case "hs256":
		verifier = authn.NewHS256Verifier(cfg.JWTSecret)
	default:
		logger.Fatalf("unsupported JWT_VERIFY_MODE %q", cfg.JWTVerifyMode)
	}

	allowedOrigins := make(map[string]bool, len(cfg.AllowedOrigins))
	wildcard := false
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
			break
		}
		allowedOrigins[o] = true
	}
	if wildcard {
		allowedOrigins = nil
	}

	wsHandler := wsapi.NewHandler(registry, verifier, messageService, readStateService,
		time.Duration(cfg.WSHeartbeatSeconds)*time.Second, allowedOrigins, logger)

	promRegistry := prometheus.NewRegistry()
	metrics.MustRegister(promRegistry)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "chat-core"})
	})

	router.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "database unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	router.GET("/ws", func(c *gin.Context) {
		wsHandler.HandleWS(c.Writer, c.Request)
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("starting HTTP server on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown error")
	}
	cancel()

	logger.Info("stopped")
}
