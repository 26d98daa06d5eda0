package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mercadito/marketplace/internal/auth"
	"github.com/mercadito/marketplace/internal/catalog"
	"github.com/mercadito/marketplace/internal/config"
	"github.com/mercadito/marketplace/internal/httpx"
	"github.com/mercadito/marketplace/internal/inventory"
	kafkax "github.com/mercadito/marketplace/internal/kafka"
	"github.com/mercadito/marketplace/internal/logging"
	"github.com/mercadito/marketplace/internal/orders"
	"github.com/mercadito/marketplace/internal/postgres"
	"github.com/mercadito/marketplace/internal/redisx"
	"github.com/mercadito/marketplace/internal/users"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// The producer outlives the listen context: handlers publish while
	// Shutdown drains, so it is closed and flushed only after g.Wait.
	producer := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger)
	producer.Start()
	events := &orders.KafkaSink{Producer: producer}

	orderRepo := &orders.Repo{DB: db}
	engine := orders.NewEngine(db, orderRepo, orders.NewLineRepo(), inventory.NewLedger(), events, logger, cfg.ServiceName)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, cfg.ServiceName)
	blacklist := auth.NewBlacklist(rdb)
	authn := auth.Authenticate(tokens, blacklist, logger)

	router := httpx.NewRouter(logger)
	(&httpx.OrdersHandler{
		Repo:    orderRepo,
		Engine:  engine,
		Events:  events,
		Redis:   rdb,
		Service: cfg.ServiceName,
		Log:     logger,
	}).Register(router, authn)
	(&httpx.UsersHandler{
		Repo:      &users.Repo{DB: db},
		Tokens:    tokens,
		Blacklist: blacklist,
		Log:       logger,
	}).Register(router, authn)
	(&httpx.CatalogHandler{
		Repo: &catalog.Repo{DB: db},
	}).Register(router, authn)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("exit", zap.Error(err))
	}
	producer.Close()
	producer.WaitClosed()
}
