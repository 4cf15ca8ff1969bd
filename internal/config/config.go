// Package config loads process configuration via Viper from environment
// variables only (no config file is read), with a default for every
// setting.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string
	RedisURL    string

	DBMaxOpenConns int
	DBMaxIdleConns int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	WSHeartbeatSeconds int

	RedisPubSubChannel string

	LeafEventsStream string
	LeafEventsGroup  string
	KafkaBrokers     []string

	JWTVerifyMode string
	JWTSecret     string

	HTTPAddr       string
	AllowedOrigins []string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "postgres://localhost:5432/chat?sslmode=disable")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "1s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 5)
	v.SetDefault("WS_HEARTBEAT_SECONDS", 30)
	v.SetDefault("REDIS_PUBSUB_CHANNEL", "chat.fanout")
	v.SetDefault("LEAF_EVENTS_STREAM", "leaf.events")
	v.SetDefault("LEAF_EVENTS_GROUP", "chat-service")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("JWT_VERIFY_MODE", "hs256")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	pollInterval, err := time.ParseDuration(v.GetString("OUTBOX_POLL_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid OUTBOX_POLL_INTERVAL: %w", err)
	}

	cfg := &Config{
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisURL:           v.GetString("REDIS_URL"),
		DBMaxOpenConns:     v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:     v.GetInt("DB_MAX_IDLE_CONNS"),
		OutboxPollInterval: pollInterval,
		OutboxBatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
		OutboxMaxAttempts:  v.GetInt("OUTBOX_MAX_ATTEMPTS"),
		WSHeartbeatSeconds: v.GetInt("WS_HEARTBEAT_SECONDS"),
		RedisPubSubChannel: v.GetString("REDIS_PUBSUB_CHANNEL"),
		LeafEventsStream:   v.GetString("LEAF_EVENTS_STREAM"),
		LeafEventsGroup:    v.GetString("LEAF_EVENTS_GROUP"),
		KafkaBrokers:       splitCSV(v.GetString("KAFKA_BROKERS")),
		JWTVerifyMode:      v.GetString("JWT_VERIFY_MODE"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		AllowedOrigins:     splitCSV(v.GetString("ALLOWED_ORIGINS")),
	}

	if cfg.JWTVerifyMode != "hs256" && cfg.JWTVerifyMode != "jwks" {
		return nil, fmt.Errorf("config: unsupported JWT_VERIFY_MODE %q", cfg.JWTVerifyMode)
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
