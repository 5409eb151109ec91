package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/airseats/internal/domain"
	"github.com/Domenick1991/airseats/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type flightResponse struct {
	ID             int64  `json:"id"`
	FlightNumber   string `json:"flight_number"`
	Airline        string `json:"airline"`
	From           string `json:"from"`
	To             string `json:"to"`
	DepartureTime  string `json:"departure_time"`
	ArrivalTime    string `json:"arrival_time"`
	PriceCents     int64  `json:"price_cents"`
	TotalSeats     int    `json:"total_seats"`
	AvailableSeats int    `json:"available_seats"`
}

type seatMapResponse struct {
	FlightID       int64         `json:"flight_id"`
	TotalSeats     int           `json:"total_seats"`
	AvailableSeats int           `json:"available_seats"`
	Seats          []domain.Seat `json:"seats"`
}

type createFlightRequest struct {
	FlightNumber  string    `json:"flight_number" binding:"required"`
	Airline       string    `json:"airline" binding:"required"`
	From          string    `json:"from" binding:"required"`
	To            string    `json:"to" binding:"required"`
	DepartureTime time.Time `json:"departure_time" binding:"required"`
	ArrivalTime   time.Time `json:"arrival_time" binding:"required"`
	PriceCents    int64     `json:"price_cents" binding:"required"`
	TotalSeats    int       `json:"total_seats" binding:"required"`
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/search", h.search)
	router.GET("/:id", h.get)
	router.GET("/:id/seats", h.seats)
}

// RegisterAdmin mounts the write endpoints. The group must already enforce
// admin access.
func (h *FlightHandler) RegisterAdmin(router *gin.RouterGroup) {
	router.POST("", h.create)
}

func (h *FlightHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponses(list))
}

func (h *FlightHandler) search(c *gin.Context) {
	list, err := h.service.Search(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponses(list))
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := flightID(c)
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(*flight))
}

func (h *FlightHandler) seats(c *gin.Context) {
	id, ok := flightID(c)
	if !ok {
		return
	}
	seatMap, err := h.service.SeatMap(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, seatMapResponse{
		FlightID:       seatMap.FlightID,
		TotalSeats:     seatMap.TotalSeats,
		AvailableSeats: seatMap.AvailableSeats,
		Seats:          seatMap.Seats,
	})
}

func (h *FlightHandler) create(c *gin.Context) {
	var req createFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": domain.KindValidation})
		return
	}

	flight, err := h.service.Create(c.Request.Context(), flights.CreateFlightInput{
		FlightNumber:  req.FlightNumber,
		Airline:       req.Airline,
		FromAirport:   req.From,
		ToAirport:     req.To,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		TotalSeats:    req.TotalSeats,
		PriceCents:    req.PriceCents,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toFlightResponse(*flight))
}

func flightID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id", "code": domain.KindValidation})
		return 0, false
	}
	return id, true
}

func toFlightResponse(f domain.Flight) flightResponse {
	return flightResponse{
		ID:             f.ID,
		FlightNumber:   f.FlightNumber,
		Airline:        f.Airline,
		From:           f.FromAirport,
		To:             f.ToAirport,
		DepartureTime:  f.DepartureTime.Format(time.RFC3339),
		ArrivalTime:    f.ArrivalTime.Format(time.RFC3339),
		PriceCents:     f.PriceCents,
		TotalSeats:     f.TotalSeats,
		AvailableSeats: f.AvailableSeats,
	}
}

func toFlightResponses(list []domain.Flight) []flightResponse {
	out := make([]flightResponse, len(list))
	for i, f := range list {
		out[i] = toFlightResponse(f)
	}
	return out
}
