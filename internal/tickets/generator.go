// Package tickets renders the itinerary handed to a passenger once a booking
// is paid.
package tickets

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Domenick1991/airseats/config"
	"github.com/Domenick1991/airseats/internal/domain"
)

const ticketTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Ticket {{.Booking.ID}}</title></head>
<body>
<h1>AIRWAY RESERVATION</h1>
<p>Booking ID: <b>{{.Booking.ID}}</b> &middot; {{.TripType}}</p>
<hr>
<h2>{{.Flight.FromAirport}} &rarr; {{.Flight.ToAirport}}</h2>
<p>Flight: {{.Flight.Airline}} {{.Flight.FlightNumber}}</p>
<p>Departure: {{.Departure}} &middot; Arrival: {{.Arrival}}</p>
<hr>
<h3>Passengers</h3>
<ol>
{{- range .Booking.Passengers}}
<li>{{.Name}} (Age: {{.Age}}, {{.Gender}}){{if .SeatNumber}} &middot; Seat {{.SeatNumber}}{{end}}</li>
{{- end}}
</ol>
<h3>Baggage Allowance</h3>
<ul>
<li>Check-in: 15 kg per adult, Cabin: 7 kg per adult</li>
<li>Additional baggage can be purchased at additional cost</li>
</ul>
<h3>Payment Details</h3>
<p>Total Amount Paid: {{.Amount}}</p>
<p>Payment ID: {{.Booking.PaymentID}}</p>
<h3>Cancellation Information</h3>
<ul>
<li>Cancel from Manage Booking using your Booking ID.</li>
<li>Refunds are issued to the original payment method.</li>
</ul>
<p>Issued {{.Issued}}</p>
</body>
</html>
`

type Generator struct {
	dir     string
	baseURL string
	tmpl    *template.Template
}

func NewGenerator(cfg config.TicketsConfig) (*Generator, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tickets dir: %w", err)
	}
	return &Generator{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tmpl:    template.Must(template.New("ticket").Parse(ticketTemplate)),
	}, nil
}

func FileName(bookingID string) string {
	return "ticket_" + bookingID + ".html"
}

// Reference is the public location of a booking's ticket. It depends only on
// the booking id, so it is known before the artifact exists.
func (g *Generator) Reference(bookingID string) string {
	return g.baseURL + "/tickets/" + FileName(bookingID)
}

func (g *Generator) Path(bookingID string) string {
	return filepath.Join(g.dir, FileName(bookingID))
}

func (g *Generator) Dir() string {
	return g.dir
}

// Generate renders the ticket for booking on its primary flight and returns
// its reference. Re-generating overwrites the previous file.
func (g *Generator) Generate(ctx context.Context, booking *domain.Booking, primary *domain.Flight) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err := g.tmpl.Execute(&buf, struct {
		Booking   *domain.Booking
		Flight    *domain.Flight
		TripType  domain.TripType
		Departure string
		Arrival   string
		Amount    string
		Issued    string
	}{
		Booking:   booking,
		Flight:    primary,
		TripType:  booking.TripType(),
		Departure: primary.DepartureTime.Format(time.RFC1123),
		Arrival:   primary.ArrivalTime.Format(time.RFC1123),
		Amount:    fmt.Sprintf("%d.%02d", booking.TotalAmountCents/100, booking.TotalAmountCents%100),
		Issued:    time.Now().Format("02 Jan 2006"),
	})
	if err != nil {
		return "", fmt.Errorf("render ticket: %w", err)
	}

	tmp, err := os.CreateTemp(g.dir, ".ticket-*")
	if err != nil {
		return "", fmt.Errorf("write ticket: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write ticket: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write ticket: %w", err)
	}
	if err := os.Rename(tmp.Name(), g.Path(booking.ID)); err != nil {
		return "", fmt.Errorf("write ticket: %w", err)
	}

	return g.Reference(booking.ID), nil
}
