package reservation

import (
	"time"

	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
)

type ReservationCreated struct {
	ReservationID ID                   `json:"reservation_id"`
	VehicleID     string               `json:"vehicle_id"`
	CustomerID    string               `json:"customer_id"`
	Period        period.BookingPeriod `json:"period"`
	TotalPrice    money.Money          `json:"total_price"`
	At            time.Time            `json:"occurred_at"`
}

func (e ReservationCreated) EventName() string     { return "reservation.created" }
func (e ReservationCreated) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationCreated) OccurredAt() time.Time { return e.At }

type ReservationConfirmed struct {
	ReservationID ID                   `json:"reservation_id"`
	VehicleID     string               `json:"vehicle_id"`
	CustomerID    string               `json:"customer_id"`
	Period        period.BookingPeriod `json:"period"`
	TotalPrice    money.Money          `json:"total_price"`
	At            time.Time            `json:"occurred_at"`
}

func (e ReservationConfirmed) EventName() string     { return "reservation.confirmed" }
func (e ReservationConfirmed) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationConfirmed) OccurredAt() time.Time { return e.At }

type ReservationCancelled struct {
	ReservationID  ID        `json:"reservation_id"`
	VehicleID      string    `json:"vehicle_id"`
	CustomerID     string    `json:"customer_id"`
	PreviousStatus Status    `json:"previous_status"`
	Reason         string    `json:"reason,omitempty"`
	At             time.Time `json:"occurred_at"`
}

func (e ReservationCancelled) EventName() string     { return "reservation.cancelled" }
func (e ReservationCancelled) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationCancelled) OccurredAt() time.Time { return e.At }

type ReservationActivated struct {
	ReservationID ID        `json:"reservation_id"`
	VehicleID     string    `json:"vehicle_id"`
	CustomerID    string    `json:"customer_id"`
	At            time.Time `json:"occurred_at"`
}

func (e ReservationActivated) EventName() string     { return "reservation.activated" }
func (e ReservationActivated) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationActivated) OccurredAt() time.Time { return e.At }

type ReservationCompleted struct {
	ReservationID ID        `json:"reservation_id"`
	VehicleID     string    `json:"vehicle_id"`
	CustomerID    string    `json:"customer_id"`
	At            time.Time `json:"occurred_at"`
}

func (e ReservationCompleted) EventName() string     { return "reservation.completed" }
func (e ReservationCompleted) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationCompleted) OccurredAt() time.Time { return e.At }
