package booking

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/Domenick1991/airseats/internal/kafka"
	"github.com/Domenick1991/airseats/internal/lock"
	"github.com/Domenick1991/airseats/internal/repository"
	"github.com/Domenick1991/airseats/internal/service/allocation"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID string) (*ConfirmResult, error)
	CancelBooking(ctx context.Context, bookingID, userID string) (*CancelResult, error)
	GetBooking(ctx context.Context, bookingID, userID string) (*domain.Booking, error)
}

// TicketGenerator produces the artifact handed out after payment. Reference
// must be derivable from the booking id alone.
type TicketGenerator interface {
	Reference(bookingID string) string
	Generate(ctx context.Context, booking *domain.Booking, primary *domain.Flight) (string, error)
}

type Notifier interface {
	SendConfirmation(ctx context.Context, email, bookingID, ticketReference string) error
}

type EventProducer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type FlightsCache interface {
	InvalidateFlights(ctx context.Context) error
}

type CreateBookingInput struct {
	UserID     string             `validate:"required"`
	UserEmail  string             `validate:"omitempty,email"`
	FlightIDs  []int64            `validate:"required,min=1,max=2,unique,dive,gt=0"`
	Passengers []domain.Passenger `validate:"required,min=1,dive"`
}

type ConfirmResult struct {
	BookingID       string
	TicketReference string
	PaymentID       string
	// Warnings lists post-commit steps that failed. The payment stands.
	Warnings []string
}

type CancelResult struct {
	BookingID    string
	RefundStatus domain.RefundStatus
}

type BookingService struct {
	bookings repository.BookingRepository
	flights  repository.FlightRepository
	tx       repository.Transactor
	locker   lock.Locker
	log      logrus.FieldLogger

	tickets     TicketGenerator
	notifier    Notifier
	producer    EventProducer
	eventsTopic string
	cache       FlightsCache
	now         func() time.Time
}

type BookingServiceOption func(*BookingService)

func WithTicketGenerator(g TicketGenerator) BookingServiceOption {
	return func(s *BookingService) {
		s.tickets = g
	}
}

func WithNotifier(n Notifier) BookingServiceOption {
	return func(s *BookingService) {
		s.notifier = n
	}
}

func WithEvents(producer EventProducer, topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.eventsTopic = topic
	}
}

func WithFlightsCache(c FlightsCache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = c
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	tx repository.Transactor,
	locker lock.Locker,
	log logrus.FieldLogger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings: bookings,
		flights:  flights,
		tx:       tx,
		locker:   locker,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking records a PENDING booking. Availability is checked against
// the advertised counts only; seats are taken at payment.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	flights, err := s.loadFlights(ctx, input.FlightIDs)
	if err != nil {
		return nil, err
	}

	var fare int64
	for _, f := range flights {
		f.EnsureSeats()
		if f.AvailableSeats < len(input.Passengers) {
			return nil, domain.Capacityf("flight %d has %d seats left, %d requested", f.ID, f.AvailableSeats, len(input.Passengers))
		}
		fare += f.PriceCents
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, domain.Persistence("generate booking id", err)
	}

	passengers := make([]domain.Passenger, len(input.Passengers))
	for i, p := range input.Passengers {
		p.SeatNumber = domain.NormalizeSeatNumber(p.SeatNumber)
		passengers[i] = p
	}

	now := s.now().UTC()
	booking := &domain.Booking{
		ID:                 id.String(),
		UserID:             input.UserID,
		UserEmail:          input.UserEmail,
		FlightIDs:          append([]int64(nil), input.FlightIDs...),
		Passengers:         passengers,
		TotalAmountCents:   int64(len(passengers)) * fare,
		PaymentStatus:      domain.PaymentStatusPending,
		CancellationStatus: domain.CancellationStatusNone,
		RefundStatus:       domain.RefundStatusNotApplicable,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, domain.Persistence("create booking", err)
	}

	s.publish(ctx, EventBookingCreated, booking)
	s.log.WithFields(logrus.Fields{"booking_id": booking.ID, "flights": booking.FlightIDs}).Info("booking created")
	return booking, nil
}

// ConfirmPayment seats every passenger on every flight of the booking and
// marks it paid. Repeating it after success returns the stored result.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID string) (*ConfirmResult, error) {
	unlockBooking, err := s.locker.Lock(ctx, lock.BookingKey(bookingID))
	if err != nil {
		return nil, domain.Persistence("lock booking", err)
	}
	defer unlockBooking()

	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.IsPaid() {
		return s.confirmed(ctx, booking), nil
	}
	if booking.PaymentStatus != domain.PaymentStatusPending {
		return nil, domain.Conflictf("booking %s cannot be paid in state %s/%s", booking.ID, booking.PaymentStatus, booking.CancellationStatus)
	}

	unlockFlights, err := s.lockFlights(ctx, booking.FlightIDs)
	if err != nil {
		return nil, err
	}
	defer unlockFlights()

	flights, err := s.loadFlights(ctx, booking.FlightIDs)
	if err != nil {
		return nil, err
	}

	// Every flight must pass feasibility before any of them is touched.
	versions := make(map[int64]int64, len(flights))
	plans := make([]*allocation.Plan, 0, len(flights))
	for _, f := range flights {
		versions[f.ID] = f.Version
		f.EnsureSeats()
		plan, err := allocation.NewPlan(f, booking.Passengers)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	assignments := make(map[int64][]string, len(plans))
	for _, plan := range plans {
		seats, err := plan.Commit()
		if err != nil {
			return nil, err
		}
		assignments[plan.FlightID()] = seats
	}

	paid := booking.Clone()
	for i, sn := range assignments[paid.PrimaryFlightID()] {
		paid.Passengers[i].SeatNumber = sn
	}
	paid.SeatAssignments = assignments
	paid.PaymentStatus = domain.PaymentStatusSuccess
	paid.PaymentID = "PAY-" + uuid.NewString()
	if s.tickets != nil {
		paid.TicketReference = s.tickets.Reference(paid.ID)
	}
	paid.DeliveryPending = s.tickets != nil || s.notifier != nil
	paid.UpdatedAt = s.now().UTC()

	if err := s.saveAll(ctx, paid, flights, versions); err != nil {
		return nil, err
	}
	// Seats are durable; other bookings on these flights may proceed while
	// the collaborators run.
	unlockFlights()

	s.log.WithFields(logrus.Fields{"booking_id": paid.ID, "seats": assignments}).Info("payment confirmed")
	s.invalidateFlights(ctx)
	s.publish(ctx, EventBookingConfirmed, paid)

	return &ConfirmResult{
		BookingID:       paid.ID,
		TicketReference: paid.TicketReference,
		PaymentID:       paid.PaymentID,
		Warnings:        s.completeDelivery(ctx, paid, primaryFlight(flights, paid.PrimaryFlightID())),
	}, nil
}

// confirmed returns the stored result of a paid booking. A delivery that
// failed earlier is retried first.
func (s *BookingService) confirmed(ctx context.Context, booking *domain.Booking) *ConfirmResult {
	res := &ConfirmResult{BookingID: booking.ID, TicketReference: booking.TicketReference, PaymentID: booking.PaymentID}
	if !booking.DeliveryPending || booking.IsCancelled() {
		return res
	}

	flights, err := s.flights.GetByIDs(ctx, []int64{booking.PrimaryFlightID()})
	if err != nil || len(flights) == 0 {
		s.log.WithError(err).WithField("booking_id", booking.ID).Warn("cannot load flight to retry delivery")
		res.Warnings = []string{"delivery retry failed: primary flight unavailable"}
		return res
	}
	flights[0].EnsureSeats()
	res.Warnings = s.completeDelivery(ctx, booking, flights[0])
	return res
}

// completeDelivery runs the collaborators and clears the pending marker once
// all of them succeed.
func (s *BookingService) completeDelivery(ctx context.Context, booking *domain.Booking, primary *domain.Flight) []string {
	if !booking.DeliveryPending {
		return nil
	}
	warnings := s.deliver(ctx, booking, primary)
	if len(warnings) > 0 {
		return warnings
	}
	booking.DeliveryPending = false
	if err := s.bookings.Save(ctx, booking); err != nil {
		s.log.WithError(err).WithField("booking_id", booking.ID).Warn("failed to clear delivery marker")
	}
	return nil
}

// CancelBooking releases the booking's seats and marks it refunded. Only the
// owner of a paid, not yet cancelled booking may cancel it.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID string) (*CancelResult, error) {
	unlockBooking, err := s.locker.Lock(ctx, lock.BookingKey(bookingID))
	if err != nil {
		return nil, domain.Persistence("lock booking", err)
	}
	defer unlockBooking()

	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.Authorizationf("booking %s belongs to another user", booking.ID)
	}
	if booking.IsCancelled() {
		return nil, domain.Conflictf("booking %s is already cancelled", booking.ID)
	}
	if !booking.IsPaid() {
		return nil, domain.Conflictf("booking %s is not paid", booking.ID)
	}

	unlockFlights, err := s.lockFlights(ctx, booking.FlightIDs)
	if err != nil {
		return nil, err
	}
	defer unlockFlights()

	flights, err := s.flights.GetByIDs(ctx, booking.FlightIDs)
	if err != nil {
		return nil, domain.Persistence("load flights", err)
	}
	versions := make(map[int64]int64, len(flights))
	for _, f := range flights {
		versions[f.ID] = f.Version
		f.EnsureSeats()
		f.Release(booking.SeatsOn(f.ID))
		f.RecomputeAvailable()
	}

	now := s.now().UTC()
	cancelled := booking.Clone()
	cancelled.CancellationStatus = domain.CancellationStatusCancelled
	cancelled.RefundStatus = domain.RefundStatusRefunded
	cancelled.CancelledAt = &now
	cancelled.UpdatedAt = now

	if err := s.saveAll(ctx, cancelled, flights, versions); err != nil {
		return nil, err
	}
	unlockFlights()

	s.log.WithField("booking_id", cancelled.ID).Info("booking cancelled")
	s.invalidateFlights(ctx)
	s.publish(ctx, EventBookingCancelled, cancelled)

	return &CancelResult{BookingID: cancelled.ID, RefundStatus: cancelled.RefundStatus}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.Authorizationf("booking %s belongs to another user", booking.ID)
	}
	return booking, nil
}

func (s *BookingService) loadBooking(ctx context.Context, id string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotFoundf("booking %s not found", id)
	}
	if err != nil {
		return nil, domain.Persistence("load booking", err)
	}
	return booking, nil
}

// loadFlights returns the flights in ascending id order and fails with
// NotFound if any id does not resolve.
func (s *BookingService) loadFlights(ctx context.Context, ids []int64) ([]*domain.Flight, error) {
	flights, err := s.flights.GetByIDs(ctx, ids)
	if err != nil {
		return nil, domain.Persistence("load flights", err)
	}
	found := make(map[int64]bool, len(flights))
	for _, f := range flights {
		found[f.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, domain.NotFoundf("flight %d not found", id)
		}
	}
	return flights, nil
}

func (s *BookingService) lockFlights(ctx context.Context, ids []int64) (lock.Unlock, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = lock.FlightKey(id)
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, domain.Persistence("lock flights", err)
	}
	return unlock, nil
}

// saveAll writes the flights and the booking in one transaction.
func (s *BookingService) saveAll(ctx context.Context, booking *domain.Booking, flights []*domain.Flight, versions map[int64]int64) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, f := range flights {
			f.UpdatedAt = booking.UpdatedAt
			if err := s.flights.Save(ctx, f, versions[f.ID]); err != nil {
				return err
			}
		}
		return s.bookings.Save(ctx, booking)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrVersionConflict):
		return domain.Persistence("flight was modified concurrently, retry", err)
	default:
		return domain.Persistence("save booking", err)
	}
}

// deliver runs the post-commit collaborators. Their failures are returned as
// warnings and never undo the payment.
func (s *BookingService) deliver(ctx context.Context, booking *domain.Booking, primary *domain.Flight) []string {
	var warnings []string
	log := s.log.WithField("booking_id", booking.ID)

	if s.tickets != nil {
		if _, err := s.tickets.Generate(ctx, booking, primary); err != nil {
			log.WithError(err).Warn("ticket generation failed")
			warnings = append(warnings, "ticket generation failed: "+err.Error())
		}
	}

	if s.notifier != nil {
		if err := s.notifier.SendConfirmation(ctx, booking.UserEmail, booking.ID, booking.TicketReference); err != nil {
			log.WithError(err).Warn("confirmation notification failed")
			warnings = append(warnings, "notification failed: "+err.Error())
		}
	}

	return warnings
}

func (s *BookingService) invalidateFlights(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.log.WithError(err).Warn("failed to invalidate flights cache")
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:               eventType,
		BookingID:          booking.ID,
		UserID:             booking.UserID,
		FlightIDs:          booking.FlightIDs,
		SeatAssignments:    booking.SeatAssignments,
		PaymentStatus:      string(booking.PaymentStatus),
		CancellationStatus: string(booking.CancellationStatus),
		TotalAmountCents:   booking.TotalAmountCents,
		OccurredAt:         s.now().UTC(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, booking.ID, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"booking_id": booking.ID, "event": eventType}).Warn("failed to publish booking event")
	}
}

func primaryFlight(flights []*domain.Flight, id int64) *domain.Flight {
	for _, f := range flights {
		if f.ID == id {
			return f
		}
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
