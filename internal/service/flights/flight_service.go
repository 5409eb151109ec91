package flights

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/Domenick1991/airseats/internal/repository"
	"github.com/sirupsen/logrus"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	Search(ctx context.Context, from, to string) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	SeatMap(ctx context.Context, id int64) (*SeatMap, error)
	Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error)
}

type FlightCache interface {
	GetFlights(ctx context.Context, key string) ([]domain.Flight, error)
	SetFlights(ctx context.Context, key string, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type CreateFlightInput struct {
	FlightNumber  string    `validate:"required"`
	Airline       string    `validate:"required"`
	FromAirport   string    `validate:"required"`
	ToAirport     string    `validate:"required,nefield=FromAirport"`
	DepartureTime time.Time `validate:"required"`
	ArrivalTime   time.Time `validate:"required,gtfield=DepartureTime"`
	TotalSeats    int       `validate:"gt=0,lte=900"`
	PriceCents    int64     `validate:"gt=0"`
}

type SeatMap struct {
	FlightID       int64
	TotalSeats     int
	AvailableSeats int
	Seats          []domain.Seat
}

type FlightService struct {
	repo  repository.FlightRepository
	cache FlightCache
	log   logrus.FieldLogger
}

// cache may be nil, in which case every read goes to the repository.
func NewFlightService(repo repository.FlightRepository, cache FlightCache, log logrus.FieldLogger) *FlightService {
	return &FlightService{repo: repo, cache: cache, log: log}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	return s.cached(ctx, "all", func() ([]domain.Flight, error) {
		return s.repo.List(ctx)
	})
}

// Search matches origin and destination case-insensitively. An empty side
// matches any airport.
func (s *FlightService) Search(ctx context.Context, from, to string) ([]domain.Flight, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	return s.cached(ctx, "search:"+from+":"+to, func() ([]domain.Flight, error) {
		return s.repo.Search(ctx, from, to)
	})
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	flight, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFoundf("flight %d not found", id)
	}
	if err != nil {
		return nil, domain.Persistence("load flight", err)
	}
	// Flights stored before seat maps existed get one on first read. The
	// layout is deterministic, so it does not need to be written back here.
	flight.EnsureSeats()
	return flight, nil
}

func (s *FlightService) SeatMap(ctx context.Context, id int64) (*SeatMap, error) {
	flight, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SeatMap{
		FlightID:       flight.ID,
		TotalSeats:     flight.TotalSeats,
		AvailableSeats: flight.AvailableSeats,
		Seats:          flight.Seats(),
	}, nil
}

// Create adds a flight with a freshly generated, fully free seat map.
func (s *FlightService) Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error) {
	input.FromAirport = strings.ToUpper(strings.TrimSpace(input.FromAirport))
	input.ToAirport = strings.ToUpper(strings.TrimSpace(input.ToAirport))
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	flight := &domain.Flight{
		FlightNumber:  strings.TrimSpace(input.FlightNumber),
		Airline:       strings.TrimSpace(input.Airline),
		FromAirport:   input.FromAirport,
		ToAirport:     input.ToAirport,
		DepartureTime: input.DepartureTime.UTC(),
		ArrivalTime:   input.ArrivalTime.UTC(),
		TotalSeats:    input.TotalSeats,
		PriceCents:    input.PriceCents,
	}
	flight.EnsureSeats()

	if err := s.repo.Create(ctx, flight); err != nil {
		return nil, domain.Persistence("create flight", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.log.WithError(err).Warn("failed to invalidate flights cache")
		}
	}
	s.log.WithFields(logrus.Fields{"flight_id": flight.ID, "route": flight.FromAirport + "-" + flight.ToAirport}).Info("flight created")
	return flight, nil
}

// cached serves key from the cache when possible. Cache errors only cost a
// trip to the repository.
func (s *FlightService) cached(ctx context.Context, key string, load func() ([]domain.Flight, error)) ([]domain.Flight, error) {
	if s.cache != nil {
		cached, err := s.cache.GetFlights(ctx, key)
		if err != nil {
			s.log.WithError(err).WithField("key", key).Warn("flights cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	flights, err := load()
	if err != nil {
		return nil, domain.Persistence("list flights", err)
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, key, flights); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("flights cache write failed")
		}
	}
	return flights, nil
}

var _ FlightUseCase = (*FlightService)(nil)
