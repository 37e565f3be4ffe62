package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

func main() {
	// a local .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err = cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})

	store, closeStore, err := openStore(cfg.Storage, log)
	if err != nil {
		log.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("failed to close storage", "error", err)
		}
	}()

	apiClient := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Breaker: circuitbreaker.Config{
			Name:             "storefront-api",
			MaxFailures:      cfg.Breaker.MaxFailures,
			OpenTimeout:      cfg.Breaker.OpenTimeout,
			HalfOpenRequests: cfg.Breaker.HalfOpenRequests,
		},
	}, func(ctx context.Context) string {
		token, _ := storage.LoadToken(ctx, store)
		return token
	}, log)

	authClient := api.NewAuthClient(apiClient)
	cartClient := api.NewCartClient(apiClient)
	orderClient := api.NewOrderClient(apiClient)

	var processor payment.CardProcessor
	cardClient, err := api.NewCardProcessorClient(api.CardProcessorConfig{
		URL:            cfg.Payment.ProcessorURL,
		PublishableKey: cfg.Payment.PublishableKey,
		Timeout:        cfg.Payment.Timeout,
	}, log)
	switch {
	case err == nil:
		processor = cardClient
	case errors.Is(err, api.ErrProcessorDisabled):
		log.Warn("card payments disabled: no processor configured")
	default:
		log.Error("failed to set up card processor", "error", err)
		os.Exit(1)
	}
	payments := payment.NewRegistry(processor)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sessions := session.NewManager(store, authClient, session.Config{
		RetainOnNetworkError: cfg.Session.RetainOnNetworkError,
		OnLoginRequired: func(reason string) {
			log.Info("login required", "reason", reason)
		},
	}, log)
	if err = sessions.Initialize(ctx); err != nil {
		log.Warn("could not confirm stored session", "error", err)
	}
	if err = sessions.Watch(ctx); err != nil {
		log.Error("failed to watch session storage", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	var pub publisher.Publisher = publisher.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = publisher.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		log.Info("publishing checkout events", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}
	defer pub.Close()

	orchestrator := checkout.NewOrchestrator(
		cartClient,
		orderClient,
		sessions,
		store,
		payments,
		pub,
		checkout.Config{Timeout: cfg.API.Timeout},
		log,
	)
	defer orchestrator.Close()

	router := h.NewRouter(
		h.RouterConfig{
			RequestTimeout:     cfg.HTTP.RequestTimeout,
			MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		},
		log,
		h.NewSessionHandler(sessions, cfg.HTTP.RequestTimeout),
		h.NewCheckoutHandler(orchestrator, cfg.HTTP.RequestTimeout),
		h.NewOrdersHandler(orderClient, cfg.HTTP.RequestTimeout),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", "port", cfg.HTTP.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	stop()

	log.Info("server exited")
}

// openStore builds the persisted store for the configured driver. The returned
// close func releases the store and any connection it was built on.
func openStore(cfg config.StorageConfig, log *slog.Logger) (storage.Store, func() error, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store := storage.NewRedisStore(client, cfg.Namespace, log)
		return store, func() error {
			return errors.Join(store.Close(), client.Close())
		}, nil

	case config.DriverPostgres:
		cred := &storage.Credentials{
			Host:              cfg.Postgres.Host,
			Port:              cfg.Postgres.Port,
			User:              cfg.Postgres.User,
			Password:          cfg.Postgres.Password,
			DBName:            cfg.Postgres.DBName,
			MigrationsDirPath: cfg.Postgres.MigrationsDir,
		}
		store, err := storage.NewPostgresStore(cred, log)
		if err != nil {
			return nil, nil, err
		}
		if err = store.RunMigrations(cred); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		store := storage.NewMemoryBroker().Open()
		return store, store.Close, nil
	}
}
