// Package notify hands booking confirmations to the mail worker through
// Kafka.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/airseats/internal/kafka"
)

const EventBookingConfirmed = "booking_confirmed"

type Publisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error
}

type KafkaNotifier struct {
	producer Publisher
	topic    string
	retries  int
}

func NewKafkaNotifier(producer Publisher, topic string, retries int) *KafkaNotifier {
	if retries < 1 {
		retries = 1
	}
	return &KafkaNotifier{producer: producer, topic: topic, retries: retries}
}

func (n *KafkaNotifier) SendConfirmation(ctx context.Context, email, bookingID, ticketReference string) error {
	if email == "" {
		return fmt.Errorf("booking %s has no contact e-mail", bookingID)
	}
	event := kafka.NotificationEvent{
		Type:            EventBookingConfirmed,
		Email:           email,
		BookingID:       bookingID,
		TicketReference: ticketReference,
		OccurredAt:      time.Now().UTC(),
	}
	if err := n.producer.PublishWithRetry(ctx, n.topic, bookingID, event, n.retries); err != nil {
		return fmt.Errorf("queue confirmation for %s: %w", bookingID, err)
	}
	return nil
}
