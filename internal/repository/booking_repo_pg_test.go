package repository

import (
	"testing"

	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewBookingRepository(pool)
	assert.NotNil(t, repo)
}

func TestEncodeBooking(t *testing.T) {
	b := &domain.Booking{
		Passengers:      []domain.Passenger{{Name: "Asha", Age: 31, Gender: "F", SeatNumber: "1A"}},
		SeatAssignments: map[int64][]string{7: {"1A"}},
	}

	passengers, assignments, err := encodeBooking(b)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Asha","age":31,"gender":"F","seat_number":"1A"}]`, string(passengers))
	assert.JSONEq(t, `{"7":["1A"]}`, string(assignments))
}
