// Package app assembles and runs the review service: database pool,
// migrations, Kafka producer and consumers, and the HTTP server.
package app

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecomstack/review-service/internal/config"
	"github.com/ecomstack/review-service/internal/event"
	handler "github.com/ecomstack/review-service/internal/handler/http"
	"github.com/ecomstack/review-service/internal/repository/postgres"
	"github.com/ecomstack/review-service/internal/service"
	"github.com/ecomstack/review-service/pkg/database"
	"github.com/ecomstack/review-service/pkg/health"
	"github.com/ecomstack/review-service/pkg/kafka"
	"github.com/ecomstack/review-service/pkg/middleware"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const serviceName = "review-service"

// App holds the assembled service.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	producer  *kafka.Producer
	consumers []*kafka.Consumer
	server    *http.Server
}

// New builds the application: connects to Postgres, runs migrations, and
// wires repositories, service, event handlers, and the HTTP router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)

	if err := database.RunMigrations(ctx, pool, migrationFiles, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	producer := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)

	reviewRepo := postgres.NewReviewRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	purchaseRepo := postgres.NewPurchaseRepository(pool)

	events := event.NewReviewEventProducer(producer, logger)
	policy := service.Policy{
		EditWindow:       cfg.EditWindow(),
		MaxImages:        cfg.MaxImages,
		MaxResponseChars: cfg.SellerResponseMaxLen,
	}
	svc := service.NewReviewService(reviewRepo, productRepo, purchaseRepo, events, policy, logger)

	readModels := event.NewReadModelHandlers(purchaseRepo, productRepo, logger)
	consumers := []*kafka.Consumer{
		newConsumer(cfg, event.TopicOrderCreated, readModels.HandleOrderCreated, logger),
		newConsumer(cfg, event.TopicOrderStatusChanged, readModels.HandleOrderStatusChanged, logger),
		newConsumer(cfg, event.TopicProductCreated, readModels.HandleProductEvent, logger),
		newConsumer(cfg, event.TopicProductUpdated, readModels.HandleProductEvent, logger),
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", producer.Ping)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterConfig{
		ReviewHandler: handler.NewReviewHandler(svc, logger),
		Health:        healthHandler,
		Logger:        logger,
		CORS:          corsCfg,
		ServiceName:   serviceName,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		producer:  producer,
		consumers: consumers,
		server:    server,
	}, nil
}

func newConsumer(cfg *config.Config, topic string, h kafka.Handler, logger *slog.Logger) *kafka.Consumer {
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaGroupID,
		Topic:   topic,
	}, h, logger)
}

// Run starts the consumers and the HTTP server, then blocks until the context
// is canceled and everything has shut down.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, c := range a.consumers {
		wg.Add(1)
		go func(c *kafka.Consumer) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				a.logger.Error("consumer stopped with error", slog.String("error", err.Error()))
			}
		}(c)
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}

	wg.Wait()

	if err := a.producer.Close(); err != nil {
		a.logger.Error("producer close failed", slog.String("error", err.Error()))
	}
	a.pool.Close()

	a.logger.Info("shutdown complete")
	return nil
}
