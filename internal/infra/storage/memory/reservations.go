package memory

import (
	"context"
	"fmt"
	"sync"

	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
)

// ReservationStore is the committed state shared by every unit.
type ReservationStore struct {
	mu    sync.RWMutex
	items map[reservation.ID]*reservation.Reservation
}

func NewReservationStore() *ReservationStore {
	return &ReservationStore{items: make(map[reservation.ID]*reservation.Reservation)}
}

func (s *ReservationStore) FindByID(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reservation.ErrNotFound, id)
	}
	return clone(r), nil
}

func (s *ReservationStore) Add(ctx context.Context, r *reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[r.ID]; exists {
		return &reservation.ConflictError{ReservationID: r.ID, Version: r.Version}
	}
	r.Version = 1
	s.items[r.ID] = clone(r)
	return nil
}

func (s *ReservationStore) Update(ctx context.Context, r *reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[r.ID]
	if !ok {
		return fmt.Errorf("%w: %s", reservation.ErrNotFound, r.ID)
	}
	if current.Version != r.Version {
		return &reservation.ConflictError{ReservationID: r.ID, Version: r.Version}
	}
	r.Version++
	s.items[r.ID] = clone(r)
	return nil
}

func (s *ReservationStore) SearchOverlapping(ctx context.Context, vehicleID string, p period.BookingPeriod, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	return overlapping(s.snapshot(), vehicleID, p, statuses), nil
}

func (s *ReservationStore) SearchPaged(ctx context.Context, params reservation.SearchParams) (search.Page[*reservation.Reservation], error) {
	return reservation.Search(s.snapshot(), params)
}

func (s *ReservationStore) snapshot() []*reservation.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*reservation.Reservation, 0, len(s.items))
	for _, r := range s.items {
		out = append(out, clone(r))
	}
	return out
}

func (s *ReservationStore) apply(staged map[reservation.ID]*reservation.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range staged {
		s.items[id] = r
	}
}

func overlapping(items []*reservation.Reservation, vehicleID string, p period.BookingPeriod, statuses []reservation.Status) []*reservation.Reservation {
	var out []*reservation.Reservation
	for _, r := range items {
		if vehicleID != "" && r.VehicleID != vehicleID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, r.Status) {
			continue
		}
		if r.Period.OverlapsWith(p) {
			out = append(out, r)
		}
	}
	return out
}

func containsStatus(statuses []reservation.Status, s reservation.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// clone copies the aggregate; its pointer fields are never mutated in place.
func clone(r *reservation.Reservation) *reservation.Reservation {
	c := *r
	return &c
}

var _ reservation.Repository = (*ReservationStore)(nil)
