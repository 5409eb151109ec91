package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/airseats/internal/domain"
)

// MemoryStore keeps flights and bookings in process memory. It backs the
// "memory" database driver and the service tests. Writes made inside
// WithinTx are staged and applied together on success.
type MemoryStore struct {
	mu           sync.RWMutex
	flights      map[int64]*domain.Flight
	bookings     map[string]*domain.Booking
	nextFlightID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flights:  make(map[int64]*domain.Flight),
		bookings: make(map[string]*domain.Booking),
	}
}

type memTx struct {
	flights  map[int64]*domain.Flight
	expected map[int64]int64
	bookings map[string]*domain.Booking
	created  map[string]bool
}

type memTxKey struct{}

func stagedTx(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if stagedTx(ctx) != nil {
		return fn(ctx)
	}
	tx := &memTx{
		flights:  make(map[int64]*domain.Flight),
		expected: make(map[int64]int64),
		bookings: make(map[string]*domain.Booking),
		created:  make(map[string]bool),
	}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, want := range tx.expected {
		cur, ok := s.flights[id]
		if !ok || cur.Version != want {
			return ErrVersionConflict
		}
	}
	for id := range tx.bookings {
		_, exists := s.bookings[id]
		if tx.created[id] == exists {
			if exists {
				return errors.New("booking already exists")
			}
			return ErrNotFound
		}
	}
	for id, f := range tx.flights {
		s.flights[id] = f
	}
	for id, b := range tx.bookings {
		s.bookings[id] = b
	}
	return nil
}

// Flights returns a FlightRepository view of the store.
func (s *MemoryStore) Flights() FlightRepository {
	return &memoryFlights{s: s}
}

// Bookings returns a BookingRepository view of the store.
func (s *MemoryStore) Bookings() BookingRepository {
	return &memoryBookings{s: s}
}

type memoryFlights struct {
	s *MemoryStore
}

func (r *memoryFlights) snapshot(ctx context.Context) []*domain.Flight {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tx := stagedTx(ctx)
	out := make([]*domain.Flight, 0, len(r.s.flights))
	for id, f := range r.s.flights {
		if tx != nil {
			if staged, ok := tx.flights[id]; ok {
				f = staged
			}
		}
		out = append(out, f.Clone())
	}
	return out
}

func (r *memoryFlights) List(ctx context.Context) ([]domain.Flight, error) {
	all := r.snapshot(ctx)
	sort.Slice(all, func(i, j int) bool { return all[i].DepartureTime.Before(all[j].DepartureTime) })
	out := make([]domain.Flight, len(all))
	for i, f := range all {
		out[i] = *f
	}
	return out, nil
}

func (r *memoryFlights) Search(ctx context.Context, from, to string) ([]domain.Flight, error) {
	all, _ := r.List(ctx)
	out := make([]domain.Flight, 0, len(all))
	for _, f := range all {
		if from != "" && !strings.EqualFold(f.FromAirport, from) {
			continue
		}
		if to != "" && !strings.EqualFold(f.ToAirport, to) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *memoryFlights) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	list, _ := r.GetByIDs(ctx, []int64{id})
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

func (r *memoryFlights) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Flight, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tx := stagedTx(ctx)
	out := make([]*domain.Flight, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		f, ok := r.s.flights[id]
		if tx != nil {
			if staged, inTx := tx.flights[id]; inTx {
				f, ok = staged, true
			}
		}
		if ok {
			out = append(out, f.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryFlights) Create(ctx context.Context, flight *domain.Flight) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextFlightID++
	now := time.Now()
	flight.ID = r.s.nextFlightID
	flight.Version = 1
	flight.CreatedAt, flight.UpdatedAt = now, now
	r.s.flights[flight.ID] = flight.Clone()
	return nil
}

func (r *memoryFlights) Save(ctx context.Context, flight *domain.Flight, expectedVersion int64) error {
	if tx := stagedTx(ctx); tx != nil {
		r.s.mu.RLock()
		cur, ok := r.s.flights[flight.ID]
		r.s.mu.RUnlock()
		if staged, inTx := tx.flights[flight.ID]; inTx {
			cur, ok = staged, true
		}
		if !ok || cur.Version != expectedVersion {
			return ErrVersionConflict
		}
		if _, tracked := tx.expected[flight.ID]; !tracked {
			tx.expected[flight.ID] = expectedVersion
		}
		flight.Version = expectedVersion + 1
		flight.UpdatedAt = time.Now()
		tx.flights[flight.ID] = flight.Clone()
		return nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.flights[flight.ID]
	if !ok || cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	flight.Version = expectedVersion + 1
	flight.UpdatedAt = time.Now()
	r.s.flights[flight.ID] = flight.Clone()
	return nil
}

type memoryBookings struct {
	s *MemoryStore
}

func (r *memoryBookings) Create(ctx context.Context, booking *domain.Booking) error {
	now := time.Now()
	booking.CreatedAt, booking.UpdatedAt = now, now
	if tx := stagedTx(ctx); tx != nil {
		tx.bookings[booking.ID] = booking.Clone()
		tx.created[booking.ID] = true
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.bookings[booking.ID]; exists {
		return errors.New("booking already exists")
	}
	r.s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (r *memoryBookings) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if tx := stagedTx(ctx); tx != nil {
		if b, ok := tx.bookings[id]; ok {
			return b.Clone(), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (r *memoryBookings) Save(ctx context.Context, booking *domain.Booking) error {
	booking.UpdatedAt = time.Now()
	if tx := stagedTx(ctx); tx != nil {
		tx.bookings[booking.ID] = booking.Clone()
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[booking.ID]; !ok {
		return ErrNotFound
	}
	r.s.bookings[booking.ID] = booking.Clone()
	return nil
}

var (
	_ Transactor        = (*MemoryStore)(nil)
	_ FlightRepository  = (*memoryFlights)(nil)
	_ BookingRepository = (*memoryBookings)(nil)
)
