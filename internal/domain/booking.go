package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

type CancellationStatus string

const (
	CancellationStatusNone      CancellationStatus = "NONE"
	CancellationStatusCancelled CancellationStatus = "CANCELLED"
)

type RefundStatus string

const (
	RefundStatusNotApplicable RefundStatus = "NOT_APPLICABLE"
	RefundStatusInitiated     RefundStatus = "INITIATED"
	RefundStatusRefunded      RefundStatus = "REFUNDED"
)

type TripType string

const (
	TripTypeOneWay    TripType = "ONE_WAY"
	TripTypeRoundTrip TripType = "ROUND_TRIP"
)

type Passenger struct {
	Name       string `json:"name" validate:"required"`
	Age        int    `json:"age" validate:"gte=0,lte=130"`
	Gender     string `json:"gender"`
	SeatNumber string `json:"seat_number,omitempty"`
}

type Booking struct {
	ID        string
	UserID    string
	UserEmail string
	// FlightIDs keeps the requested order; the first entry is the primary flight.
	FlightIDs  []int64
	Passengers []Passenger
	// SeatAssignments holds the seats reserved on each flight, keyed by flight id.
	SeatAssignments    map[int64][]string
	TotalAmountCents   int64
	PaymentStatus      PaymentStatus
	CancellationStatus CancellationStatus
	RefundStatus       RefundStatus
	PaymentID          string
	TicketReference    string
	// DeliveryPending is set while the ticket or the confirmation notice has
	// not been delivered since payment.
	DeliveryPending bool
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (b *Booking) TripType() TripType {
	if len(b.FlightIDs) == 2 {
		return TripTypeRoundTrip
	}
	return TripTypeOneWay
}

func (b *Booking) PrimaryFlightID() int64 {
	if len(b.FlightIDs) == 0 {
		return 0
	}
	return b.FlightIDs[0]
}

func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentStatusSuccess
}

func (b *Booking) IsCancelled() bool {
	return b.CancellationStatus == CancellationStatusCancelled
}

// SeatsOn returns the seats held on flightID. Bookings written before seat
// assignments were tracked per flight fall back to the passenger list.
func (b *Booking) SeatsOn(flightID int64) []string {
	if seats, ok := b.SeatAssignments[flightID]; ok {
		return append([]string(nil), seats...)
	}
	seats := make([]string, 0, len(b.Passengers))
	for _, p := range b.Passengers {
		if sn := NormalizeSeatNumber(p.SeatNumber); sn != "" {
			seats = append(seats, sn)
		}
	}
	return seats
}

// Clone returns a deep copy.
func (b *Booking) Clone() *Booking {
	c := *b
	c.FlightIDs = append([]int64(nil), b.FlightIDs...)
	c.Passengers = append([]Passenger(nil), b.Passengers...)
	if b.SeatAssignments != nil {
		c.SeatAssignments = make(map[int64][]string, len(b.SeatAssignments))
		for id, seats := range b.SeatAssignments {
			c.SeatAssignments[id] = append([]string(nil), seats...)
		}
	}
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
