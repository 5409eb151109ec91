// Package allocation resolves a booking's passengers against one flight's
// seat inventory in two steps: Plan checks feasibility without touching the
// flight, Commit applies the result.
package allocation

import (
	"github.com/Domenick1991/airseats/internal/domain"
)

// Plan is the outcome of a successful feasibility check for one flight.
type Plan struct {
	flight    *domain.Flight
	requested []string // normalized per passenger, "" when unseated
	freePool  []string
	committed []string
}

// NewPlan runs the feasibility phase. It returns a Conflict error for a seat
// named twice or already booked, NotFound for an unknown seat and Capacity
// when the free pool cannot seat every passenger without a request. The
// flight is not modified.
func NewPlan(flight *domain.Flight, passengers []domain.Passenger) (*Plan, error) {
	if len(passengers) == 0 {
		return nil, domain.Validationf("no passengers to seat")
	}

	requested := make([]string, len(passengers))
	claimed := make(map[string]struct{}, len(passengers))
	unseated := 0
	for i, p := range passengers {
		sn := domain.NormalizeSeatNumber(p.SeatNumber)
		requested[i] = sn
		if sn == "" {
			unseated++
			continue
		}
		if _, dup := claimed[sn]; dup {
			return nil, domain.Conflictf("seat %s requested more than once", sn)
		}
		claimed[sn] = struct{}{}
	}

	for _, sn := range requested {
		if sn == "" {
			continue
		}
		seat, ok := flight.FindSeat(sn)
		if !ok {
			return nil, domain.NotFoundf("seat %s not found on flight %d", sn, flight.ID)
		}
		if seat.IsBooked {
			return nil, domain.Conflictf("seat %s already booked on flight %d", sn, flight.ID)
		}
	}

	free := flight.FreeSeats()
	pool := make([]string, 0, len(free))
	for _, s := range free {
		if _, taken := claimed[s.SeatNumber]; !taken {
			pool = append(pool, s.SeatNumber)
		}
	}
	if unseated > len(pool) {
		return nil, domain.Capacityf("flight %d has %d free seats, %d needed", flight.ID, len(pool), unseated)
	}

	return &Plan{flight: flight, requested: requested, freePool: pool}, nil
}

func (p *Plan) FlightID() int64 {
	return p.flight.ID
}

// Commit assigns unseated passengers from the free pool in seat order,
// reserves the full set and recomputes availability. It returns the seat of
// each passenger, in passenger order. Commit runs at most once per plan.
func (p *Plan) Commit() ([]string, error) {
	if p.committed != nil {
		return append([]string(nil), p.committed...), nil
	}
	assigned := make([]string, len(p.requested))
	next := 0
	for i, sn := range p.requested {
		if sn == "" {
			sn = p.freePool[next]
			next++
		}
		assigned[i] = sn
	}
	if err := p.flight.Reserve(assigned); err != nil {
		return nil, err
	}
	p.flight.RecomputeAvailable()
	p.committed = assigned
	return append([]string(nil), assigned...), nil
}
