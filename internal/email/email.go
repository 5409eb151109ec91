package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Domenick1991/airseats/config"
	"github.com/Domenick1991/airseats/internal/kafka"
	"github.com/Domenick1991/airseats/internal/tickets"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Sender struct {
	dialer     Dialer
	from       string
	ticketsDir string
	log        logrus.FieldLogger
}

func NewSender(cfg config.MailConfig, ticketsDir string, log logrus.FieldLogger) *Sender {
	return NewSenderWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, ticketsDir, log)
}

func NewSenderWithDialer(d Dialer, from, ticketsDir string, log logrus.FieldLogger) *Sender {
	return &Sender{dialer: d, from: from, ticketsDir: ticketsDir, log: log}
}

// Send mails the booking confirmation. The ticket file is attached when it
// exists locally; otherwise the message only carries its link.
func (s *Sender) Send(ctx context.Context, event kafka.NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Email == "" {
		return fmt.Errorf("notification for booking %s has no recipient", event.BookingID)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", event.Email)
	m.SetHeader("Subject", "Your Flight Ticket "+event.BookingID)
	m.SetBody("text/html", fmt.Sprintf(
		"<p>Your booking <b>%s</b> is confirmed.</p><p>Ticket: <a href=\"%s\">%s</a></p>",
		event.BookingID, event.TicketReference, event.TicketReference))

	path := filepath.Join(s.ticketsDir, tickets.FileName(event.BookingID))
	if _, err := os.Stat(path); err == nil {
		m.Attach(path)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", event.Email, err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": event.BookingID, "to": event.Email}).Info("confirmation mail sent")
	return nil
}
