package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/Domenick1991/airseats/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type passengerRequest struct {
	Name       string `json:"name" binding:"required"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	SeatNumber string `json:"seat_number"`
}

type createBookingRequest struct {
	FlightIDs  []int64            `json:"flight_ids" binding:"required,min=1"`
	Passengers []passengerRequest `json:"passengers" binding:"required,min=1,dive"`
}

type createBookingResponse struct {
	BookingID        string `json:"booking_id"`
	TotalAmountCents int64  `json:"total_amount_cents"`
	TripType         string `json:"trip_type"`
	PaymentStatus    string `json:"payment_status"`
}

type confirmResponse struct {
	BookingID       string   `json:"booking_id"`
	TicketReference string   `json:"ticket_reference"`
	PaymentID       string   `json:"payment_id"`
	Warnings        []string `json:"warnings,omitempty"`
}

type cancelResponse struct {
	BookingID    string `json:"booking_id"`
	RefundStatus string `json:"refund_status"`
}

type bookingResponse struct {
	ID                 string              `json:"id"`
	FlightIDs          []int64             `json:"flight_ids"`
	TripType           string              `json:"trip_type"`
	Passengers         []domain.Passenger  `json:"passengers"`
	SeatAssignments    map[string][]string `json:"seat_assignments,omitempty"`
	TotalAmountCents   int64               `json:"total_amount_cents"`
	PaymentStatus      string              `json:"payment_status"`
	CancellationStatus string              `json:"cancellation_status"`
	RefundStatus       string              `json:"refund_status"`
	PaymentID          string              `json:"payment_id,omitempty"`
	TicketReference    string              `json:"ticket_reference,omitempty"`
	DeliveryPending    bool                `json:"delivery_pending"`
	CancelledAt        string              `json:"cancelled_at,omitempty"`
	CreatedAt          string              `json:"created_at"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

// Register mounts the booking endpoints. The group must run Auth first;
// writes additionally go through the given middleware (rate limiting).
func (h *BookingHandler) Register(router *gin.RouterGroup, writes ...gin.HandlerFunc) {
	with := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc(nil), writes...), handler)
	}
	router.GET("/:id", h.get)
	router.POST("", with(h.create)...)
	router.POST("/:id/pay", with(h.confirm)...)
	router.POST("/:id/cancel", with(h.cancel)...)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": domain.KindValidation})
		return
	}

	passengers := make([]domain.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = domain.Passenger{Name: p.Name, Age: p.Age, Gender: p.Gender, SeatNumber: p.SeatNumber}
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		UserID:     userID(c),
		UserEmail:  c.GetString(ctxEmail),
		FlightIDs:  req.FlightIDs,
		Passengers: passengers,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createBookingResponse{
		BookingID:        created.ID,
		TotalAmountCents: created.TotalAmountCents,
		TripType:         string(created.TripType()),
		PaymentStatus:    string(created.PaymentStatus),
	})
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

// confirm is the trusted payment signal. Only the owner may trigger it.
func (h *BookingHandler) confirm(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.service.GetBooking(c.Request.Context(), id, userID(c)); err != nil {
		writeError(c, err)
		return
	}

	res, err := h.service.ConfirmPayment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, confirmResponse{
		BookingID:       res.BookingID,
		TicketReference: res.TicketReference,
		PaymentID:       res.PaymentID,
		Warnings:        res.Warnings,
	})
}

func (h *BookingHandler) cancel(c *gin.Context) {
	res, err := h.service.CancelBooking(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelResponse{BookingID: res.BookingID, RefundStatus: string(res.RefundStatus)})
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:                 b.ID,
		FlightIDs:          b.FlightIDs,
		TripType:           string(b.TripType()),
		Passengers:         b.Passengers,
		TotalAmountCents:   b.TotalAmountCents,
		PaymentStatus:      string(b.PaymentStatus),
		CancellationStatus: string(b.CancellationStatus),
		RefundStatus:       string(b.RefundStatus),
		PaymentID:          b.PaymentID,
		TicketReference:    b.TicketReference,
		DeliveryPending:    b.DeliveryPending,
		CreatedAt:          b.CreatedAt.Format(time.RFC3339),
	}
	if len(b.SeatAssignments) > 0 {
		resp.SeatAssignments = make(map[string][]string, len(b.SeatAssignments))
		for id, seats := range b.SeatAssignments {
			resp.SeatAssignments[strconv.FormatInt(id, 10)] = seats
		}
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.Format(time.RFC3339)
	}
	return resp
}
