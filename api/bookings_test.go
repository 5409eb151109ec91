package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/Domenick1991/airseats/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ConfirmPayment(ctx context.Context, bookingID string) (*booking.ConfirmResult, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.ConfirmResult), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, bookingID, userID string) (*booking.CancelResult, error) {
	args := m.Called(ctx, bookingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.CancelResult), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func newAuthedContext(w *httptest.ResponseRecorder, userID string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Set(ctxUserID, userID)
	c.Set(ctxEmail, userID+"@example.com")
	return c
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := newAuthedContext(w, "u1")

	body, _ := json.Marshal(createBookingRequest{
		FlightIDs:  []int64{1, 2},
		Passengers: []passengerRequest{{Name: "Ravi", Age: 40, Gender: "M", SeatNumber: "1a"}},
	})
	c.Request = httptest.NewRequest(http.MethodPost, "/api/bookings", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	expectedInput := booking.CreateBookingInput{
		UserID:     "u1",
		UserEmail:  "u1@example.com",
		FlightIDs:  []int64{1, 2},
		Passengers: []domain.Passenger{{Name: "Ravi", Age: 40, Gender: "M", SeatNumber: "1a"}},
	}
	mockService.On("CreateBooking", mock.Anything, expectedInput).Return(&domain.Booking{
		ID:               "b1",
		FlightIDs:        []int64{1, 2},
		TotalAmountCents: 35000,
		PaymentStatus:    domain.PaymentStatusPending,
	}, nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response createBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "b1", response.BookingID)
	assert.Equal(t, int64(35000), response.TotalAmountCents)
	assert.Equal(t, "ROUND_TRIP", response.TripType)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_create_InvalidBody(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := newAuthedContext(w, "u1")
	c.Request = httptest.NewRequest(http.MethodPost, "/api/bookings", bytes.NewReader([]byte(`{"flight_ids":[]}`)))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestBookingHandler_confirm(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := newAuthedContext(w, "u1")
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/bookings/b1/pay", nil)

	mockService.On("GetBooking", mock.Anything, "b1", "u1").Return(&domain.Booking{ID: "b1", UserID: "u1"}, nil)
	mockService.On("ConfirmPayment", mock.Anything, "b1").Return(&booking.ConfirmResult{
		BookingID:       "b1",
		TicketReference: "http://localhost:8080/tickets/ticket_b1.html",
		PaymentID:       "PAY-1",
		Warnings:        []string{"notification failed: smtp down"},
	}, nil)

	handler.confirm(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response confirmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "http://localhost:8080/tickets/ticket_b1.html", response.TicketReference)
	assert.Equal(t, "PAY-1", response.PaymentID)
	assert.Len(t, response.Warnings, 1)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_confirm_NotOwner(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := newAuthedContext(w, "u2")
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/bookings/b1/pay", nil)

	mockService.On("GetBooking", mock.Anything, "b1", "u2").Return(nil, domain.Authorizationf("booking b1 belongs to another user"))

	handler.confirm(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything)
}

func TestBookingHandler_cancel(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := newAuthedContext(w, "u1")
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/bookings/b1/cancel", nil)

	mockService.On("CancelBooking", mock.Anything, "b1", "u1").Return(&booking.CancelResult{
		BookingID:    "b1",
		RefundStatus: domain.RefundStatusRefunded,
	}, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response cancelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "REFUNDED", response.RefundStatus)
}

func TestBookingHandler_get(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	w := httptest.NewRecorder()
	c := newAuthedContext(w, "u1")
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/api/bookings/b1", nil)

	cancelledAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mockService.On("GetBooking", mock.Anything, "b1", "u1").Return(&domain.Booking{
		ID:                 "b1",
		UserID:             "u1",
		FlightIDs:          []int64{3},
		Passengers:         []domain.Passenger{{Name: "Ravi", SeatNumber: "1A"}},
		SeatAssignments:    map[int64][]string{3: {"1A"}},
		PaymentStatus:      domain.PaymentStatusSuccess,
		CancellationStatus: domain.CancellationStatusCancelled,
		RefundStatus:       domain.RefundStatusRefunded,
		CancelledAt:        &cancelledAt,
	}, nil)

	handler.get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, []string{"1A"}, response.SeatAssignments["3"])
	assert.Equal(t, "ONE_WAY", response.TripType)
	assert.Equal(t, "2026-10-01T12:00:00Z", response.CancelledAt)
}

func TestBookingHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", domain.Validationf("bad"), http.StatusBadRequest},
		{"not found", domain.NotFoundf("missing"), http.StatusNotFound},
		{"capacity", domain.Capacityf("full"), http.StatusConflict},
		{"conflict", domain.Conflictf("taken"), http.StatusConflict},
		{"authorization", domain.Authorizationf("nope"), http.StatusForbidden},
		{"persistence", domain.Persistence("save", errors.New("db down")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			handler := NewBookingHandler(mockService)

			w := httptest.NewRecorder()
			c := newAuthedContext(w, "u1")
			c.Params = gin.Params{{Key: "id", Value: "b1"}}
			c.Request = httptest.NewRequest(http.MethodPost, "/api/bookings/b1/cancel", nil)

			mockService.On("CancelBooking", mock.Anything, "b1", "u1").Return(nil, tt.err)

			handler.cancel(c)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}
