package memory

import (
	"context"
	"fmt"
	"sync"

	"rentacar/internal/domain/customer"
	"rentacar/internal/domain/pricing"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
	"rentacar/internal/domain/vehicle"
)

// VehicleCatalog is a read model over a fixed fleet.
type VehicleCatalog struct {
	mu    sync.RWMutex
	items []vehicle.Vehicle
	byID  map[string]int
}

func NewVehicleCatalog(items []vehicle.Vehicle) *VehicleCatalog {
	c := &VehicleCatalog{byID: make(map[string]int, len(items))}
	for _, v := range items {
		c.put(v)
	}
	return c
}

func (c *VehicleCatalog) put(v vehicle.Vehicle) {
	if idx, ok := c.byID[v.ID]; ok {
		c.items[idx] = v
		return
	}
	c.byID[v.ID] = len(c.items)
	c.items = append(c.items, v)
}

// Upsert replaces or appends a vehicle.
func (c *VehicleCatalog) Upsert(v vehicle.Vehicle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(v)
}

func (c *VehicleCatalog) ByID(ctx context.Context, id string) (vehicle.Vehicle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byID[id]
	if !ok {
		return vehicle.Vehicle{}, fmt.Errorf("%w: %s", vehicle.ErrNotFound, id)
	}
	return c.items[idx], nil
}

func (c *VehicleCatalog) Search(ctx context.Context, params vehicle.SearchParams) (search.Page[vehicle.Vehicle], error) {
	c.mu.RLock()
	items := append([]vehicle.Vehicle(nil), c.items...)
	c.mu.RUnlock()
	return vehicle.Search(items, params)
}

// CustomerDirectory is a read model mirroring the customer service.
type CustomerDirectory struct {
	mu    sync.RWMutex
	items []customer.Customer
	byID  map[string]int
}

func NewCustomerDirectory(items []customer.Customer) *CustomerDirectory {
	d := &CustomerDirectory{byID: make(map[string]int, len(items))}
	for _, c := range items {
		if idx, ok := d.byID[c.ID]; ok {
			d.items[idx] = c
			continue
		}
		d.byID[c.ID] = len(d.items)
		d.items = append(d.items, c)
	}
	return d
}

func (d *CustomerDirectory) ByID(ctx context.Context, id string) (customer.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.byID[id]
	if !ok {
		return customer.Customer{}, fmt.Errorf("%w: %s", customer.ErrNotFound, id)
	}
	return d.items[idx], nil
}

func (d *CustomerDirectory) Search(ctx context.Context, params customer.SearchParams) (search.Page[customer.Customer], error) {
	d.mu.RLock()
	items := append([]customer.Customer(nil), d.items...)
	d.mu.RUnlock()
	return customer.Search(items, params)
}

// PolicyCalculator prices from a local policy table.
type PolicyCalculator struct {
	Table pricing.PolicyTable
}

func (c PolicyCalculator) CalculatePrice(ctx context.Context, categoryCode string, p period.BookingPeriod, pickupLocation string) (pricing.Quote, error) {
	policy, err := c.Table.Select(categoryCode, pickupLocation, p.PickupDate())
	if err != nil {
		return pricing.Quote{}, err
	}
	return policy.Quote(p)
}

var (
	_ vehicle.Catalog    = (*VehicleCatalog)(nil)
	_ customer.Directory = (*CustomerDirectory)(nil)
	_ pricing.Calculator = PolicyCalculator{}
)
