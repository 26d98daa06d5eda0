package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mercadito/marketplace/internal/config"
	kafkax "github.com/mercadito/marketplace/internal/kafka"
	"github.com/mercadito/marketplace/internal/logging"
	"github.com/mercadito/marketplace/internal/notifier"
	"github.com/mercadito/marketplace/internal/orders"
	"github.com/mercadito/marketplace/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.ServiceName + "-notifier")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notifier.Service{
		Redis: rdb,
		Log:   logger,
		Name:  "notifier",
	}

	group := getenv("NOTIFIER_GROUP", "order-notifier")
	workers := atoiOr(os.Getenv("NOTIFIER_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderEvents, workers, logger)

	logger.Info("notifier consuming",
		zap.String("group", group),
		zap.String("topic", orders.TopicOrderEvents),
		zap.Int("workers", workers))
	if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
