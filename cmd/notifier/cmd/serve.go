package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/config"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/dispatch"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
	webhook_http "github.com/Joshina1995/shopify-whatsapp-notifications/internal/handler/http/webhook"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/infrastructure/database"
	kafka_infra "github.com/Joshina1995/shopify-whatsapp-notifications/internal/infrastructure/kafka"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/messaging"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/messaging/kafkagw"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/messaging/natsgw"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/repository/delivery_index"
	redis_index "github.com/Joshina1995/shopify-whatsapp-notifications/internal/repository/delivery_index/redis"
	journal_postgres "github.com/Joshina1995/shopify-whatsapp-notifications/internal/repository/journal_repo/postgres"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/retry"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server and WhatsApp dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create zap logger: %w", err)
		}
		defer logger.Sync()

		return runServer(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newLogger(level string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zapConfig.Level = lvl
	return zapConfig.Build()
}

func runServer(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	logger.Info("Shopify notification service starting...", zap.String("transport", cfg.WhatsApp.Transport))

	client, err := newMessagingClient(parent, cfg, logger)
	if err != nil {
		return err
	}

	manager := session.NewManager(client, cfg.WhatsApp.SendTimeout, logger.With(zap.String("component", "SessionManager")))
	defer func() {
		if err := manager.Teardown(); err != nil {
			logger.Error("Error tearing down messaging session", zap.Error(err))
		}
	}()

	var (
		queueOpts []dispatch.Option
		journal   webhook_http.JournalReader
	)

	if cfg.Database.URL != "" {
		logger.Info("Waiting for database to be available...")
		db, err := database.ConnectWithRetry(parent, cfg.Database.URL, 10, 5*time.Second, logger.With(zap.String("component", "Database")))
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Error closing database connection", zap.Error(err))
			} else {
				logger.Info("Database connection closed.")
			}
		}()

		logger.Info("Running database migrations...")
		if err := database.Migrate(cfg.Database.URL, logger.With(zap.String("component", "Migrations"))); err != nil {
			return err
		}

		journalRepo := journal_postgres.NewJournalRepository(db)
		queueOpts = append(queueOpts, dispatch.WithRecorder(journalRepo))
		journal = journalRepo
		logger.Info("Delivery journal enabled")
	}

	if cfg.Redis.Addr != "" {
		index := redis_index.NewDeliveryIndex(redis_index.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), cfg.Redis.DeliveredTTL)
		if err := index.Ping(parent); err != nil {
			logger.Warn("Redis not reachable yet, delivery index lookups will be skipped until it is", zap.Error(err))
		}
		defer index.Close()
		queueOpts = append(queueOpts, dispatch.WithDeliveryIndex(index))
		logger.Info("Redis delivery index enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		queueOpts = append(queueOpts, dispatch.WithDeliveryIndex(delivery_index.NewMemoryIndex(cfg.Redis.DeliveredTTL)))
	}

	queue := dispatch.NewQueue(manager, manager, dispatch.Config{
		Destination: cfg.WhatsApp.Destination,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		Backoff: retry.Backoff{
			BaseDelay: cfg.Dispatch.BaseDelay,
			MaxDelay:  cfg.Dispatch.MaxDelay,
			Factor:    2.0,
			Jitter:    cfg.Dispatch.Jitter,
		},
		PollInterval: cfg.Dispatch.PollInterval,
		Capacity:     cfg.Dispatch.Capacity,
		Retention:    cfg.Dispatch.Retention,
	}, logger.With(zap.String("component", "DispatchQueue")), queueOpts...)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	webhook_http.RegisterRoutes(router, queue, manager, journal, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctxMain, cancelMain := context.WithCancel(parent)
	defer cancelMain()

	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		queue.Start(ctxMain)
	}()

	if err := manager.Connect(ctxMain); err != nil {
		logger.Error("Failed to start WhatsApp session, use POST /admin/session/connect to retry", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", httpServer.Addr),
			zap.String("webhook_path", webhook_http.OrderCreatedPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctxMain, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-sigCtx.Done():
		logger.Info("Shutting down application...")
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully shut down.")
	}

	cancelMain()
	select {
	case <-queueDone:
		logger.Info("Dispatch queue stopped.")
	case <-shutdownCtx.Done():
		logger.Warn("Dispatch queue did not stop before the shutdown timeout")
	}

	if pending := len(queue.JobsInState(domain.JobStatePending)); pending > 0 {
		logger.Warn("Exiting with undelivered notifications", zap.Int("pending", pending))
	}
	logger.Info("Application gracefully shut down.")
	return runErr
}

func newMessagingClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (messaging.Client, error) {
	switch cfg.WhatsApp.Transport {
	case config.TransportKafka:
		brokers := cfg.KafkaBrokers()
		topicsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := kafka_infra.EnsureTopics(topicsCtx, brokers, []string{cfg.Kafka.CommandTopic, cfg.Kafka.SessionTopic}, logger); err != nil {
			return nil, fmt.Errorf("failed to ensure Kafka topics: %w", err)
		}
		return kafkagw.NewClient(kafkagw.Config{
			Brokers:      brokers,
			CommandTopic: cfg.Kafka.CommandTopic,
			SessionTopic: cfg.Kafka.SessionTopic,
			GroupID:      cfg.Kafka.ConsumerGroup,
			WriteTimeout: cfg.WhatsApp.SendTimeout,
		}, logger.With(zap.String("component", "KafkaGateway"))), nil

	case config.TransportNATS:
		client, err := natsgw.Dial(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger.With(zap.String("component", "NATSGateway")))
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		logger.Warn("Using loopback messaging transport, messages are logged and not delivered")
		return messaging.NewLoopbackClient(cfg.WhatsApp.PairingDelay, cfg.WhatsApp.ReadyDelay,
			logger.With(zap.String("component", "LoopbackClient"))), nil
	}
}
