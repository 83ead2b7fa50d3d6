package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotbook/internal/api"
	"slotbook/internal/config"
	"slotbook/internal/confirmation"
	"slotbook/internal/database"
	"slotbook/internal/events"
	"slotbook/internal/grounds"
	"slotbook/internal/logging"
	"slotbook/internal/metrics"
	"slotbook/internal/service"
	"slotbook/internal/storage"
	"slotbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, baseLogger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(baseLogger, "api-main")

	registry, err := loadGrounds(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initStore(ctx, cfg, baseLogger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Storage.Driver).Msg("init ledger store")
		return err
	}
	defer store.Close()

	bus := events.NewEventBus()
	forwarder, err := initForwarder(ctx, cfg, bus, baseLogger)
	if err != nil {
		return err
	}

	opts, err := service.OptionsFromConfig(cfg.Booking)
	if err != nil {
		return err
	}
	bookingService := service.NewBookingService(store, registry, bus, opts, logging.Component(baseLogger, "booking"))

	httpServer := api.NewHTTPServer(
		cfg.API,
		bookingService,
		registry,
		bus,
		confirmation.NewQREncoder(),
		logging.Component(baseLogger, "http"),
	)

	startMetrics(ctx, cfg, logger)

	err = startServers(ctx, httpServer, cfg, logger)
	stop()
	if forwarder != nil {
		forwarder.Wait()
	}
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, closer, nil
}

// loadGrounds prefers a standalone grounds file over the venue section.
func loadGrounds(cfg *config.Config, logger *zerolog.Logger) (*grounds.Registry, error) {
	if path := os.Getenv("GROUNDS_PATH"); path != "" {
		registry, err := grounds.LoadFile(path)
		if err != nil {
			logger.Error().Err(err).Str("grounds_path", path).Msg("load grounds")
			return nil, err
		}
		logger.Info().Str("grounds_path", path).Int("sports", len(registry.Sports())).Msg("grounds loaded")
		return registry, nil
	}

	registry, err := grounds.NewRegistry(cfg.Venue)
	if err != nil {
		logger.Error().Err(err).Msg("build grounds registry")
		return nil, err
	}
	return registry, nil
}

func initStore(ctx context.Context, cfg *config.Config, baseLogger *zerolog.Logger) (*storage.Store, error) {
	store, err := storage.Open(ctx, cfg, logging.Component(baseLogger, "storage"))
	if err != nil {
		return nil, err
	}
	if store.SQLite != nil && cfg.Backup.Enabled {
		backups := database.NewBackupService(store.SQLite, cfg.Backup, logging.Component(baseLogger, "backup"))
		go backups.Start(ctx)
	}
	return store, nil
}

// initForwarder relays bus events to RabbitMQ when enabled.
func initForwarder(ctx context.Context, cfg *config.Config, bus *events.EventBus, baseLogger *zerolog.Logger) (*worker.EventForwarder, error) {
	amqpCfg := cfg.Events.AMQP
	if !amqpCfg.Enabled {
		return nil, nil
	}
	logger := logging.Component(baseLogger, "events")

	publisher, err := events.NewAMQPPublisher(amqpCfg.URL, amqpCfg.Exchange)
	if err != nil {
		logger.Error().Err(err).Str("exchange", amqpCfg.Exchange).Msg("connect amqp")
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = publisher.Close()
	}()

	retry := worker.RetryPolicy{MaxRetries: amqpCfg.MaxRetries}.WithDefaults()
	forwarder := worker.NewEventForwarder(publisher, amqpCfg.QueueSize, retry, logger)
	bus.Subscribe(events.AllEvents, forwarder.Handle)
	forwarder.Start(ctx)

	logger.Info().Str("exchange", amqpCfg.Exchange).Msg("event forwarding enabled")
	return forwarder, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Str("storage", cfg.Storage.Driver).Msg("API server started")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error().Err(serveErr).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return serveErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
