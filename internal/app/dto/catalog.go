package dto

import (
	"time"

	"rentacar/internal/domain/customer"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/vehicle"
)

type Vehicle struct {
	ID           string    `json:"id"`
	Plate        string    `json:"plate"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	CategoryCode string    `json:"category_code"`
	LocationCode string    `json:"location_code"`
	Mileage      int       `json:"mileage"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func MapVehicle(v vehicle.Vehicle) Vehicle {
	return Vehicle{
		ID:           v.ID,
		Plate:        v.Plate,
		Make:         v.Make,
		Model:        v.Model,
		Year:         v.Year,
		CategoryCode: v.CategoryCode,
		LocationCode: v.LocationCode,
		Mileage:      v.Mileage,
		Status:       string(v.Status),
		CreatedAt:    v.CreatedAt,
	}
}

type Customer struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Age         int       `json:"age"`
	CreatedAt   time.Time `json:"created_at"`
}

func MapCustomer(today time.Time) func(customer.Customer) Customer {
	return func(c customer.Customer) Customer {
		out := Customer{
			ID:        c.ID,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Email:     c.Email,
			Age:       c.Age(today),
			CreatedAt: c.CreatedAt,
		}
		if !c.DateOfBirth.IsZero() {
			out.DateOfBirth = c.DateOfBirth.Format(period.DateLayout)
		}
		return out
	}
}
