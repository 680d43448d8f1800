package dto

import (
	"time"

	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/period"
)

type Reservation struct {
	ID                 string     `json:"id"`
	VehicleID          string     `json:"vehicle_id"`
	CustomerID         string     `json:"customer_id"`
	PickupDate         string     `json:"pickup_date"`
	ReturnDate         string     `json:"return_date"`
	Days               int        `json:"days"`
	PickupLocation     string     `json:"pickup_location"`
	DropoffLocation    string     `json:"dropoff_location"`
	TotalPrice         MoneyDTO   `json:"total_price"`
	Status             string     `json:"status"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	ActivatedAt        *time.Time `json:"activated_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Version            int64      `json:"version"`
}

func MapReservation(r *reservation.Reservation) Reservation {
	return Reservation{
		ID:                 string(r.ID),
		VehicleID:          r.VehicleID,
		CustomerID:         r.CustomerID,
		PickupDate:         r.Period.PickupDate().Format(period.DateLayout),
		ReturnDate:         r.Period.ReturnDate().Format(period.DateLayout),
		Days:               r.Period.Days(),
		PickupLocation:     r.PickupLocation,
		DropoffLocation:    r.DropoffLocation,
		TotalPrice:         MapMoney(r.TotalPrice),
		Status:             string(r.Status),
		CancellationReason: r.CancellationReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		ConfirmedAt:        r.ConfirmedAt,
		ActivatedAt:        r.ActivatedAt,
		CancelledAt:        r.CancelledAt,
		CompletedAt:        r.CompletedAt,
		Version:            r.Version,
	}
}

type Availability struct {
	PickupDate       string   `json:"pickup_date"`
	ReturnDate       string   `json:"return_date"`
	BookedVehicleIDs []string `json:"booked_vehicle_ids"`
	// Available is set only when the request named a vehicle.
	Available *bool `json:"available,omitempty"`
}
