package reservations

import (
	"context"
	"time"

	"rentacar/internal/app/outbox"
	"rentacar/internal/app/uow"
)

// Command and query keys.
const (
	CreateKey   = "reservations.create"
	ConfirmKey  = "reservations.confirm"
	CancelKey   = "reservations.cancel"
	ActivateKey = "reservations.activate"
	CompleteKey = "reservations.complete"
	GetKey      = "reservations.get"
	SearchKey   = "reservations.search"
)

// Clock returns the current time; tests pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func unitFrom(ctx context.Context) (uow.UnitOfWork, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	return unit, nil
}

func encoderOr(enc outbox.EventEncoder) outbox.EventEncoder {
	if enc != nil {
		return enc
	}
	return outbox.JSONEventEncoder{}
}
