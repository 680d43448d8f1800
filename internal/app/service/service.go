// Package service assembles the command and query buses for the reservation engine.
package service

import (
	"errors"
	"log/slog"
	"time"

	"rentacar/internal/app/commands"
	availabilityapp "rentacar/internal/app/handlers/availability"
	catalogapp "rentacar/internal/app/handlers/catalog"
	reservationsapp "rentacar/internal/app/handlers/reservations"
	"rentacar/internal/app/middleware"
	"rentacar/internal/app/outbox"
	"rentacar/internal/app/queries"
	"rentacar/internal/app/uow"
	"rentacar/internal/domain/availability"
	"rentacar/internal/domain/customer"
	"rentacar/internal/domain/pricing"
	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
	"rentacar/internal/domain/vehicle"
)

type Deps struct {
	UoWFactory     uow.UoWFactory
	Vehicles       vehicle.Catalog
	Customers      customer.Directory
	Pricing        pricing.Calculator
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
	// Flusher pushes committed outbox records after each command; nil leaves them to a worker.
	Flusher middleware.Flusher
	Encoder outbox.EventEncoder
	Clock   func() time.Time
	Logger  *slog.Logger
}

type Service struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// ReplayKinds are the error classes an idempotent replay reproduces.
var ReplayKinds = []error{
	reservation.ErrNotFound,
	reservation.ErrInvalidArgument,
	reservation.ErrInvalidTransition,
	availability.ErrVehicleAlreadyBooked,
	pricing.ErrNoPricingPolicyFound,
	period.ErrInvalidPeriod,
	money.ErrCurrencyMismatch,
	search.ErrUnknownSortField,
	vehicle.ErrNotFound,
	vehicle.ErrNotRentable,
	customer.ErrNotFound,
}

// Retryable reports failures that a client may retry with the same key.
func Retryable(err error) bool {
	return errors.Is(err, reservation.ErrConcurrencyConflict)
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := reservationsapp.Clock(deps.Clock)
	transitions := reservationsapp.HandlerDeps{Encoder: deps.Encoder, Clock: clock, Logger: logger}

	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler(cmdBus, &reservationsapp.CreateHandler{
		Vehicles:  deps.Vehicles,
		Customers: deps.Customers,
		Pricing:   deps.Pricing,
		Encoder:   deps.Encoder,
		Clock:     clock,
		Logger:    logger,
	})
	commands.RegisterHandler(cmdBus, reservationsapp.NewConfirmHandler(transitions))
	commands.RegisterHandler(cmdBus, reservationsapp.NewCancelHandler(transitions))
	commands.RegisterHandler(cmdBus, reservationsapp.NewActivateHandler(transitions))
	commands.RegisterHandler(cmdBus, reservationsapp.NewCompleteHandler(transitions))

	qryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(qryBus, &reservationsapp.GetHandler{UoWFactory: deps.UoWFactory})
	queries.RegisterHandler(qryBus, &reservationsapp.SearchHandler{UoWFactory: deps.UoWFactory})
	queries.RegisterHandler(qryBus, &availabilityapp.BookedHandler{UoWFactory: deps.UoWFactory, Now: deps.Clock})
	queries.RegisterHandler(qryBus, &catalogapp.VehiclesHandler{Vehicles: deps.Vehicles, UoWFactory: deps.UoWFactory, Now: deps.Clock})
	queries.RegisterHandler(qryBus, &catalogapp.CustomersHandler{Customers: deps.Customers, Now: deps.Clock})
	queries.RegisterHandler(qryBus, &catalogapp.QuoteHandler{Vehicles: deps.Vehicles, Pricing: deps.Pricing, Now: deps.Clock})

	var idempotency, flush middleware.CommandMiddleware
	if deps.Idempotency != nil {
		idempotency = middleware.Idempotency(deps.Idempotency, middleware.IdempotencyOptions{
			TTL:       deps.IdempotencyTTL,
			Kinds:     ReplayKinds,
			Retryable: Retryable,
			Now:       deps.Clock,
		})
	}
	if deps.Flusher != nil {
		flush = middleware.OutboxFlush(deps.Flusher, logger)
	}

	return &Service{
		Commands: middleware.ChainCommands(cmdBus,
			middleware.Logging(logger),
			middleware.Validation(),
			idempotency,
			flush,
			middleware.Transaction(deps.UoWFactory, nil, logger),
		),
		Queries: middleware.ChainQueries(qryBus,
			middleware.QueryLogging(logger),
			middleware.QueryValidation(),
		),
	}
}
