package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/yamdb/internal/auth"
	"github.com/Clark-Hu/yamdb/internal/catalog"
	"github.com/Clark-Hu/yamdb/internal/config"
	"github.com/Clark-Hu/yamdb/internal/events"
	httpserver "github.com/Clark-Hu/yamdb/internal/http"
	"github.com/Clark-Hu/yamdb/internal/logging"
	"github.com/Clark-Hu/yamdb/internal/rating"
	"github.com/Clark-Hu/yamdb/internal/repository"
	"github.com/Clark-Hu/yamdb/internal/reviews"
	"github.com/Clark-Hu/yamdb/internal/store"
	"github.com/Clark-Hu/yamdb/internal/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "yamdb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger.Named("store"),
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		nc, err := events.Connect(events.Options{
			URL:           cfg.NATSURL,
			Name:          "yamdb-api",
			MaxReconnects: cfg.NATSMaxReconnects,
			ReconnectWait: cfg.NATSReconnectWait,
		}, logger.Named("events"))
		if err != nil {
			return err
		}
		defer func() { _ = nc.Drain() }()
		publisher = events.New(nc, logger.Named("events"))
	} else {
		logger.Info("events: NATS_URL not set, publishing disabled")
	}

	repo := repository.New(st)
	aggregator := rating.NewAggregator(logger.Named("rating"))
	accounts := users.NewService(st, repo, aggregator, users.Options{
		Tokens:   auth.NewVerifier(cfg.JWTSecret),
		TokenTTL: cfg.TokenTTL,
		Events:   publisher,
		Log:      logger.Named("users"),
	})
	svc := httpserver.Services{
		Catalog:  catalog.NewService(st, repo, logger.Named("catalog")),
		Reviews:  reviews.NewService(st, repo, aggregator, publisher, logger.Named("reviews")),
		Comments: reviews.NewCommentService(repo, logger.Named("comments")),
		Users:    accounts,
	}
	server := httpserver.New(cfg, st, repo.Users, svc, logger.Named("http"))

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("graceful shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}
