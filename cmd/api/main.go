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

	"tally/internal/cache"
	"tally/internal/config"
	"tally/internal/database"
	"tally/internal/events"
	"tally/internal/ledger"
	"tally/internal/logger"
	"tally/internal/server"
	"tally/internal/services"
	"tally/internal/validator"
)

// @title           Tally API
// @version         1.0
// @description     Tally records dated income and expense entries and keeps daily and monthly totals consistent with them.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 10 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	store := cache.NewNop()
	if appConfig.RedisURL != "" {
		client, err := cache.Connect(ctx, appConfig.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		store = cache.NewRedisStore(client)
		log.Infow("Read cache enabled", "ttl", appConfig.CacheTTL)
	}

	publisher := events.NewNopPublisher()
	if appConfig.AMQPURL != "" {
		publisher, err = events.NewAMQPPublisher(appConfig.AMQPURL, appConfig.AMQPExchange)
		if err != nil {
			return fmt.Errorf("failed to connect to message broker: %w", err)
		}
		log.Infow("Entry events enabled", "exchange", appConfig.AMQPExchange)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnf("publisher close error: %v", err)
		}
	}()

	validator.Register()

	db := dbManager.DB()
	categoryService := services.NewCategoryService(db)
	entryService := ledger.NewEntryService(db, categoryService,
		ledger.WithCache(store),
		ledger.WithPublisher(publisher),
		ledger.WithRetry(appConfig.LedgerWriteAttempts, appConfig.LedgerRetryBackoff),
	)
	statsService := ledger.NewCachedStatsService(
		ledger.NewStatsService(db, appConfig.MaxDateRangeDays), store, appConfig.CacheTTL)

	router := server.NewRouter(server.Deps{
		Users:      services.NewUserService(db),
		Categories: categoryService,
		Settings:   services.NewSettingsService(db),
		Audit:      services.NewAuditService(db),
		Entries:    entryService,
		Stats:      statsService,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Tally server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
