package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"rentacar/internal/app/handlers/notifications"
	"rentacar/internal/app/middleware"
	appoutbox "rentacar/internal/app/outbox"
	"rentacar/internal/app/service"
	"rentacar/internal/app/uow"
	"rentacar/internal/domain/pricing"
	"rentacar/internal/infra/broker/kafka"
	"rentacar/internal/infra/config"
	mongostore "rentacar/internal/infra/db/mongo"
	"rentacar/internal/infra/db/postgres"
	ginserver "rentacar/internal/infra/http/gin"
	"rentacar/internal/infra/inbox"
	"rentacar/internal/infra/obs"
	"rentacar/internal/infra/outbox"
	pricinghttp "rentacar/internal/infra/pricing"
	"rentacar/internal/infra/storage/memory"
)

const notificationsConsumer = "notifications"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev", "info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: app.checks}, app.handlers)

	var wg sync.WaitGroup
	for name, run := range app.background {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background task stopped", "task", name, "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "persistence", cfg.Persistence, "pricing", cfg.PricingMode, "kafka", cfg.KafkaEnabled())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
		wg.Wait()
		app.close(logger)
		os.Exit(1)
	}
	wg.Wait()
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers   ginserver.Handlers
	checks     map[string]obs.Check
	background map[string]func(context.Context) error
	closers    []func() error
	closeOnce  *sync.Once
}

func (a application) close(logger *slog.Logger) {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				logger.Warn("close failed", "error", err)
			}
		}
	})
}

// storage is the persistence-specific half of the wiring.
type storage struct {
	factory     uow.UoWFactory
	idempotency middleware.IdempotencyStore
	inbox       inbox.Store
	// relay is set for durable outboxes drained by a worker.
	relay outbox.Store
	// flusher is set for the in-process outbox.
	flusher *memory.Outbox
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (app application, err error) {
	app = application{
		checks:     map[string]obs.Check{},
		background: map[string]func(context.Context) error{},
		closeOnce:  &sync.Once{},
	}
	defer func() {
		if err != nil {
			app.close(logger)
		}
	}()

	fixtures, err := memory.LoadFixtures(cfg.FixturesDir)
	if err != nil {
		return app, fmt.Errorf("load fixtures: %w", err)
	}
	logger.Info("fixtures loaded", "dir", cfg.FixturesDir,
		"vehicles", len(fixtures.Vehicles), "customers", len(fixtures.Customers), "policies", len(fixtures.Policies))

	calculator, err := buildPricing(cfg, fixtures, logger, &app)
	if err != nil {
		return app, err
	}

	// Producer chosen first so the in-process outbox can publish through it.
	processor := &inbox.Processor{
		Handler: &notifications.Dispatcher{Notifier: notifications.LogNotifier{Logger: logger}, Logger: logger},
		Logger:  logger,
	}
	var producer outbox.Producer = inbox.Loopback{Processor: processor}
	if cfg.KafkaEnabled() {
		kp, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return app, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, kp.Close)
		producer = kp
	}

	store, err := buildStorage(ctx, cfg, producer, logger, &app)
	if err != nil {
		return app, err
	}
	processor.Store = store.inbox

	if store.relay != nil {
		worker := &outbox.Worker{
			Store:       store.relay,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		}
		app.background["outbox-worker"] = worker.Run
	}
	if cfg.KafkaEnabled() {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, nil,
			kafka.PayloadHandler(processor.Process), logger)
		if err != nil {
			return app, fmt.Errorf("kafka consumer: %w", err)
		}
		app.closers = append(app.closers, consumer.Close)
		topic := outbox.TopicFor(cfg.KafkaTopicPrefix, "reservation.created")
		app.background["notifications-consumer"] = func(ctx context.Context) error {
			return consumer.Run(ctx, []string{topic})
		}
	}

	deps := service.Deps{
		UoWFactory:     store.factory,
		Vehicles:       memory.NewVehicleCatalog(fixtures.Vehicles),
		Customers:      memory.NewCustomerDirectory(fixtures.Customers),
		Pricing:        calculator,
		Idempotency:    store.idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Encoder:        appoutbox.JSONEventEncoder{},
		Logger:         logger,
	}
	if store.flusher != nil {
		deps.Flusher = store.flusher
	}
	svc := service.New(deps)

	limits := ginserver.PageLimits{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize}
	app.handlers = ginserver.Handlers{
		Reservations: ginserver.ReservationHandler{Commands: svc.Commands, Queries: svc.Queries, Limits: limits},
		Availability: ginserver.AvailabilityHandler{Queries: svc.Queries},
		Catalog:      ginserver.CatalogHandler{Queries: svc.Queries, Limits: limits},
	}
	return app, nil
}

func buildPricing(cfg config.Config, fixtures memory.Fixtures, logger *slog.Logger, app *application) (pricing.Calculator, error) {
	switch cfg.PricingMode {
	case config.PricingHTTP:
		calc := &pricinghttp.HTTPCalculator{
			Client:  &http.Client{},
			BaseURL: cfg.PricingURL,
			Timeout: cfg.PricingTimeout,
			Logger:  logger,
		}
		app.checks["pricing"] = calc.Ping
		return calc, nil
	case config.PricingMemory:
		if len(fixtures.Policies) == 0 {
			logger.Warn("no pricing policies loaded; every quote will fail")
		}
		return memory.PolicyCalculator{Table: fixtures.Policies}, nil
	default:
		return nil, fmt.Errorf("unknown pricing mode %q", cfg.PricingMode)
	}
}

func buildStorage(ctx context.Context, cfg config.Config, producer outbox.Producer, logger *slog.Logger, app *application) (storage, error) {
	switch cfg.Persistence {
	case config.PersistenceMongo:
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, err
		}
		app.closers = append(app.closers, func() error { return client.Close(context.Background()) })
		if err := client.EnsureIndexes(ctx); err != nil {
			return storage{}, fmt.Errorf("mongo indexes: %w", err)
		}
		app.checks["mongo"] = client.Ping
		return storage{
			factory:     mongostore.NewFactory(client.DB),
			idempotency: mongostore.NewIdempotencyStore(client.DB),
			inbox:       mongostore.NewInboxStore(client.DB, notificationsConsumer),
			relay:       mongostore.NewOutboxStore(client.DB),
		}, nil

	case config.PersistencePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return storage{}, err
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			return storage{}, err
		}
		logger.Info("postgres migrations applied", "count", applied)
		app.checks["postgres"] = pool.Ping
		return storage{
			factory:     postgres.NewFactory(pool),
			idempotency: postgres.NewIdempotencyStore(pool),
			inbox:       postgres.NewInboxStore(pool, notificationsConsumer),
			relay:       postgres.NewOutboxStore(pool),
		}, nil

	default:
		source := outbox.DefaultSource
		box := memory.NewOutbox(func(ctx context.Context, rec appoutbox.EventRecord) error {
			return outbox.Publish(ctx, producer, cfg.KafkaTopicPrefix, source, rec)
		})
		return storage{
			factory:     memory.NewFactory(memory.NewReservationStore(), box),
			idempotency: memory.NewIdempotencyStore(),
			inbox:       inbox.NewMemoryStore(),
			flusher:     box,
		}, nil
	}
}
