package bootstrap

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/airseats/api"
	"github.com/Domenick1991/airseats/config"
	"github.com/Domenick1991/airseats/internal/lock"
	"github.com/Domenick1991/airseats/internal/logger"
	"github.com/Domenick1991/airseats/internal/repository"
	"github.com/Domenick1991/airseats/internal/service/booking"
	"github.com/Domenick1991/airseats/internal/service/flights"
	"github.com/Domenick1991/airseats/internal/tickets"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const secret = "integration-secret"

type client struct {
	t      *testing.T
	router *gin.Engine
}

func (c client) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func token(t *testing.T, userID string, admin bool) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{UserID: userID, Email: userID + "@example.com", Admin: admin}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newTestRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Parse([]byte("auth:\n  jwt_secret: " + secret + "\n"))
	require.NoError(t, err)
	cfg.Tickets = config.TicketsConfig{Dir: t.TempDir(), BaseURL: "http://example.test"}

	log := logger.Discard()
	store := repository.NewMemoryStore()
	gen, err := tickets.NewGenerator(cfg.Tickets)
	require.NoError(t, err)

	router, err := NewRouter(cfg, Deps{
		Flights: flights.NewFlightService(store.Flights(), nil, log),
		Bookings: booking.NewBookingService(store.Bookings(), store.Flights(), store, lock.NewLocalLocker(), log,
			booking.WithTicketGenerator(gen)),
		RateStore: memory.NewStore(),
		Log:       log,
	})
	require.NoError(t, err)
	return router, cfg
}

func TestRouter_Healthz(t *testing.T) {
	router, _ := newTestRouter(t)
	code, body := client{t, router}.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_BookingFlow(t *testing.T) {
	router, cfg := newTestRouter(t)
	c := client{t, router}
	admin := token(t, "admin", true)
	alice := token(t, "alice", false)
	bob := token(t, "bob", false)
	dep := time.Date(2026, 12, 1, 6, 0, 0, 0, time.UTC)

	code, _ := c.do(http.MethodPost, "/api/flights", alice, map[string]interface{}{
		"flight_number": "AI-101", "airline": "Air India", "from": "DEL", "to": "MAA",
		"departure_time": dep, "arrival_time": dep.Add(2 * time.Hour), "price_cents": 10000, "total_seats": 4,
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, flight := c.do(http.MethodPost, "/api/flights", admin, map[string]interface{}{
		"flight_number": "AI-101", "airline": "Air India", "from": "DEL", "to": "MAA",
		"departure_time": dep, "arrival_time": dep.Add(2 * time.Hour), "price_cents": 10000, "total_seats": 4,
	})
	require.Equal(t, http.StatusCreated, code)
	flightID := int64(flight["id"].(float64))

	code, _ = c.do(http.MethodPost, "/api/bookings", "", map[string]interface{}{"flight_ids": []int64{flightID}})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, created := c.do(http.MethodPost, "/api/bookings", alice, map[string]interface{}{
		"flight_ids": []int64{flightID},
		"passengers": []map[string]interface{}{{"name": "Alice", "age": 30}, {"name": "Ann", "age": 5}},
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(20000), created["total_amount_cents"])
	bookingID := created["booking_id"].(string)

	code, _ = c.do(http.MethodPost, "/api/bookings/"+bookingID+"/cancel", alice, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = c.do(http.MethodPost, "/api/bookings/"+bookingID+"/pay", bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, paid := c.do(http.MethodPost, "/api/bookings/"+bookingID+"/pay", alice, nil)
	require.Equal(t, http.StatusOK, code)
	ref := "http://example.test/tickets/" + tickets.FileName(bookingID)
	assert.Equal(t, ref, paid["ticket_reference"])

	code, again := c.do(http.MethodPost, "/api/bookings/"+bookingID+"/pay", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, paid["payment_id"], again["payment_id"])

	_, err := os.Stat(cfg.Tickets.Dir + "/" + tickets.FileName(bookingID))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/tickets/"+tickets.FileName(bookingID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Seat 1A")

	code, seats := c.do(http.MethodGet, "/api/flights/"+jsonInt(flightID)+"/seats", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), seats["available_seats"])

	code, cancelled := c.do(http.MethodPost, "/api/bookings/"+bookingID+"/cancel", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "REFUNDED", cancelled["refund_status"])

	code, _ = c.do(http.MethodPost, "/api/bookings/"+bookingID+"/cancel", alice, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, got := c.do(http.MethodGet, "/api/bookings/"+bookingID, alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CANCELLED", got["cancellation_status"])

	code, _ = c.do(http.MethodGet, "/api/bookings/missing", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
