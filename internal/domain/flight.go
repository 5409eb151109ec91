package domain

import (
	"encoding/json"
	"time"
)

type Flight struct {
	ID             int64
	FlightNumber   string
	Airline        string
	FromAirport    string
	ToAirport      string
	DepartureTime  time.Time
	ArrivalTime    time.Time
	TotalSeats     int
	AvailableSeats int
	PriceCents     int64
	// Version is the optimistic concurrency stamp checked on every save.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	seats []Seat
}

type Seat struct {
	SeatNumber string `json:"seat_number"`
	IsBooked   bool   `json:"is_booked"`
}

// flightJSON mirrors Flight with the seat map exposed, for caches and APIs.
type flightJSON struct {
	ID             int64     `json:"id"`
	FlightNumber   string    `json:"flight_number"`
	Airline        string    `json:"airline"`
	FromAirport    string    `json:"from_airport"`
	ToAirport      string    `json:"to_airport"`
	DepartureTime  time.Time `json:"departure_time"`
	ArrivalTime    time.Time `json:"arrival_time"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	PriceCents     int64     `json:"price_cents"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Seats          []Seat    `json:"seats,omitempty"`
}

func (f Flight) MarshalJSON() ([]byte, error) {
	return json.Marshal(flightJSON{
		ID:             f.ID,
		FlightNumber:   f.FlightNumber,
		Airline:        f.Airline,
		FromAirport:    f.FromAirport,
		ToAirport:      f.ToAirport,
		DepartureTime:  f.DepartureTime,
		ArrivalTime:    f.ArrivalTime,
		TotalSeats:     f.TotalSeats,
		AvailableSeats: f.AvailableSeats,
		PriceCents:     f.PriceCents,
		Version:        f.Version,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
		Seats:          f.seats,
	})
}

func (f *Flight) UnmarshalJSON(data []byte) error {
	var v flightJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Flight{
		ID:             v.ID,
		FlightNumber:   v.FlightNumber,
		Airline:        v.Airline,
		FromAirport:    v.FromAirport,
		ToAirport:      v.ToAirport,
		DepartureTime:  v.DepartureTime,
		ArrivalTime:    v.ArrivalTime,
		TotalSeats:     v.TotalSeats,
		AvailableSeats: v.AvailableSeats,
		PriceCents:     v.PriceCents,
		Version:        v.Version,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
	f.LoadSeats(v.Seats)
	return nil
}

// Clone returns a deep copy, so callers can mutate the seat map without
// touching the original.
func (f *Flight) Clone() *Flight {
	c := *f
	c.seats = append([]Seat(nil), f.seats...)
	return &c
}
