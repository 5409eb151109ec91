package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/airseats/internal/domain"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
)

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	Search(ctx context.Context, from, to string) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	// GetByIDs returns the flights that exist, ordered by id. Unknown ids
	// are left out.
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	// Save writes the flight if its stored version still equals
	// expectedVersion and bumps flight.Version. Otherwise it returns
	// ErrVersionConflict.
	Save(ctx context.Context, flight *domain.Flight, expectedVersion int64) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	Save(ctx context.Context, booking *domain.Booking) error
}

// Transactor runs fn so that every repository write made with the ctx it
// receives commits or rolls back together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
