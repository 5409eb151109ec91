package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const flightColumns = `id, flight_number, airline, from_airport, to_airport, departure_time, arrival_time, total_seats, available_seats, price_cents, seats, version, created_at, updated_at`

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
	if err != nil {
		return nil, err
	}
	return collectFlights(rows)
}

func (r *PGFlightRepository) Search(ctx context.Context, from, to string) ([]domain.Flight, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+flightColumns+` FROM flights
		WHERE ($1 = '' OR from_airport = $1) AND ($2 = '' OR to_airport = $2)
		ORDER BY departure_time`, strings.ToUpper(from), strings.ToUpper(to))
	if err != nil {
		return nil, err
	}
	return collectFlights(rows)
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id)
	f, err := scanFlight(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

func (r *PGFlightRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Flight, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	list, err := collectFlights(rows)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Flight, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	seats, err := json.Marshal(flight.Seats())
	if err != nil {
		return fmt.Errorf("encode seats: %w", err)
	}
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO flights
		(flight_number, airline, from_airport, to_airport, departure_time, arrival_time, total_seats, available_seats, price_cents, seats, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		RETURNING id, version, created_at, updated_at`,
		flight.FlightNumber, flight.Airline, flight.FromAirport, flight.ToAirport, flight.DepartureTime, flight.ArrivalTime,
		flight.TotalSeats, flight.AvailableSeats, flight.PriceCents, seats).
		Scan(&flight.ID, &flight.Version, &flight.CreatedAt, &flight.UpdatedAt)
}

func (r *PGFlightRepository) Save(ctx context.Context, flight *domain.Flight, expectedVersion int64) error {
	seats, err := json.Marshal(flight.Seats())
	if err != nil {
		return fmt.Errorf("encode seats: %w", err)
	}
	err = conn(ctx, r.db).QueryRow(ctx, `UPDATE flights
		SET total_seats=$1, available_seats=$2, seats=$3, version=version+1, updated_at=now()
		WHERE id=$4 AND version=$5
		RETURNING version, updated_at`,
		flight.TotalSeats, flight.AvailableSeats, seats, flight.ID, expectedVersion).
		Scan(&flight.Version, &flight.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var (
		f     domain.Flight
		seats []byte
	)
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.Airline, &f.FromAirport, &f.ToAirport, &f.DepartureTime, &f.ArrivalTime,
		&f.TotalSeats, &f.AvailableSeats, &f.PriceCents, &seats, &f.Version, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	var list []domain.Seat
	if len(seats) > 0 {
		if err := json.Unmarshal(seats, &list); err != nil {
			return nil, fmt.Errorf("decode seats of flight %d: %w", f.ID, err)
		}
	}
	f.LoadSeats(list)
	return &f, nil
}

func collectFlights(rows pgx.Rows) ([]domain.Flight, error) {
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

var _ FlightRepository = (*PGFlightRepository)(nil)
