package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, user_id, user_email, flight_ids, passengers, seat_assignments, total_amount_cents, payment_status, cancellation_status, refund_status, payment_id, ticket_reference, delivery_pending, cancelled_at, created_at, updated_at`

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	passengers, assignments, err := encodeBooking(booking)
	if err != nil {
		return err
	}
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO bookings
		(id, user_id, user_email, flight_ids, passengers, seat_assignments, total_amount_cents, payment_status, cancellation_status, refund_status, payment_id, ticket_reference, delivery_pending, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		booking.ID, booking.UserID, booking.UserEmail, booking.FlightIDs, passengers, assignments, booking.TotalAmountCents,
		booking.PaymentStatus, booking.CancellationStatus, booking.RefundStatus, booking.PaymentID, booking.TicketReference, booking.DeliveryPending, booking.CancelledAt).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)

	var (
		b                       domain.Booking
		passengers, assignments []byte
	)
	err := row.Scan(&b.ID, &b.UserID, &b.UserEmail, &b.FlightIDs, &passengers, &assignments, &b.TotalAmountCents,
		&b.PaymentStatus, &b.CancellationStatus, &b.RefundStatus, &b.PaymentID, &b.TicketReference, &b.DeliveryPending, &b.CancelledAt,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(passengers, &b.Passengers); err != nil {
		return nil, fmt.Errorf("decode passengers of booking %s: %w", b.ID, err)
	}
	if len(assignments) > 0 {
		if err := json.Unmarshal(assignments, &b.SeatAssignments); err != nil {
			return nil, fmt.Errorf("decode seat assignments of booking %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

func (r *PGBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	passengers, assignments, err := encodeBooking(booking)
	if err != nil {
		return err
	}
	err = conn(ctx, r.db).QueryRow(ctx, `UPDATE bookings
		SET passengers=$1, seat_assignments=$2, payment_status=$3, cancellation_status=$4, refund_status=$5,
			payment_id=$6, ticket_reference=$7, delivery_pending=$8, cancelled_at=$9, updated_at=now()
		WHERE id=$10
		RETURNING updated_at`,
		passengers, assignments, booking.PaymentStatus, booking.CancellationStatus, booking.RefundStatus,
		booking.PaymentID, booking.TicketReference, booking.DeliveryPending, booking.CancelledAt, booking.ID).
		Scan(&booking.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func encodeBooking(b *domain.Booking) ([]byte, []byte, error) {
	passengers, err := json.Marshal(b.Passengers)
	if err != nil {
		return nil, nil, fmt.Errorf("encode passengers: %w", err)
	}
	assignments, err := json.Marshal(b.SeatAssignments)
	if err != nil {
		return nil, nil, fmt.Errorf("encode seat assignments: %w", err)
	}
	return passengers, assignments, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
