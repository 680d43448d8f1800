package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rentacar/internal/domain/customer"
	"rentacar/internal/domain/pricing"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/vehicle"
)

// Fixture file names inside the fixtures directory.
const (
	VehiclesFile  = "vehicles.json"
	CustomersFile = "customers.json"
	PoliciesFile  = "pricing_policies.json"
)

type Fixtures struct {
	Vehicles  []vehicle.Vehicle
	Customers []customer.Customer
	Policies  pricing.PolicyTable
}

type vehicleFixture struct {
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

type customerFixture struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	DateOfBirth string    `json:"date_of_birth"`
	CreatedAt   time.Time `json:"created_at"`
}

type policyFixture struct {
	ID           string          `json:"id"`
	CategoryCode string          `json:"category_code"`
	LocationCode string          `json:"location_code"`
	DailyRateNet decimal.Decimal `json:"daily_rate_net"`
	VATRate      decimal.Decimal `json:"vat_rate"`
	Currency     string          `json:"currency"`
	ValidFrom    string          `json:"valid_from"`
	ValidUntil   string          `json:"valid_until"`
}

// LoadFixtures reads the three fixture files from dir. A missing file yields
// an empty collection.
func LoadFixtures(dir string) (Fixtures, error) {
	return LoadFixturesFS(os.DirFS(dir))
}

func LoadFixturesFS(fsys fs.FS) (Fixtures, error) {
	var out Fixtures

	var vehicles []vehicleFixture
	if err := readJSON(fsys, VehiclesFile, &vehicles); err != nil {
		return Fixtures{}, err
	}
	for _, v := range vehicles {
		status := vehicle.Status(strings.ToUpper(strings.TrimSpace(v.Status)))
		if status == "" {
			status = vehicle.StatusAvailable
		}
		out.Vehicles = append(out.Vehicles, vehicle.Vehicle{
			ID:           v.ID,
			Plate:        v.Plate,
			Make:         v.Make,
			Model:        v.Model,
			Year:         v.Year,
			CategoryCode: strings.ToUpper(v.CategoryCode),
			LocationCode: strings.ToUpper(v.LocationCode),
			Mileage:      v.Mileage,
			Status:       status,
			CreatedAt:    v.CreatedAt.UTC(),
		})
	}

	var customers []customerFixture
	if err := readJSON(fsys, CustomersFile, &customers); err != nil {
		return Fixtures{}, err
	}
	for _, c := range customers {
		dob, err := parseDate(c.DateOfBirth)
		if err != nil {
			return Fixtures{}, fmt.Errorf("memory.LoadFixtures: customer %s: %w", c.ID, err)
		}
		out.Customers = append(out.Customers, customer.Customer{
			ID:          c.ID,
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			Email:       c.Email,
			DateOfBirth: dob,
			CreatedAt:   c.CreatedAt.UTC(),
		})
	}

	var policies []policyFixture
	if err := readJSON(fsys, PoliciesFile, &policies); err != nil {
		return Fixtures{}, err
	}
	for _, p := range policies {
		policy, err := p.toPolicy()
		if err != nil {
			return Fixtures{}, fmt.Errorf("memory.LoadFixtures: policy %s: %w", p.ID, err)
		}
		out.Policies = append(out.Policies, policy)
	}
	return out, nil
}

func (p policyFixture) toPolicy() (pricing.Policy, error) {
	rate, err := money.FromNet(p.DailyRateNet, p.VATRate, p.Currency)
	if err != nil {
		return pricing.Policy{}, err
	}
	from, err := parseDate(p.ValidFrom)
	if err != nil {
		return pricing.Policy{}, err
	}
	until, err := parseDate(p.ValidUntil)
	if err != nil {
		return pricing.Policy{}, err
	}
	return pricing.NewPolicy(p.ID, p.CategoryCode, p.LocationCode, rate, from, until)
}

func readJSON(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("memory.readJSON: %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("memory.readJSON: %s: %w", name, err)
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(period.DateLayout, raw)
}
