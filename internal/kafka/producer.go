package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// BookingEvent is published on every booking state change.
type BookingEvent struct {
	Type               string             `json:"type"`
	BookingID          string             `json:"booking_id"`
	UserID             string             `json:"user_id"`
	FlightIDs          []int64            `json:"flight_ids"`
	SeatAssignments    map[int64][]string `json:"seat_assignments,omitempty"`
	PaymentStatus      string             `json:"payment_status"`
	CancellationStatus string             `json:"cancellation_status"`
	TotalAmountCents   int64              `json:"total_amount_cents"`
	OccurredAt         time.Time          `json:"occurred_at"`
}

// NotificationEvent asks the worker to send a confirmation e-mail.
type NotificationEvent struct {
	Type            string    `json:"type"`
	Email           string    `json:"email"`
	BookingID       string    `json:"booking_id"`
	TicketReference string    `json:"ticket_reference"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type Producer struct {
	brokers []string
	writer  *kafka.Writer
	log     logrus.FieldLogger
}

func NewProducer(brokers []string, log logrus.FieldLogger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		brokers: brokers,
		writer:  writer,
		log:     log,
	}
}

// Publish writes payload as JSON. Messages are keyed so that all events of
// one booking land on the same partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.log.WithFields(logrus.Fields{"topic": topic, "key": key}).Debug("published to kafka")
	return nil
}

func (p *Producer) PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := p.Publish(ctx, topic, key, payload)
		if err == nil {
			return nil
		}

		lastErr = err
		p.log.WithError(err).WithField("attempt", i+1).Warn("kafka publish failed")

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker and reads its partitions.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}

	p.log.WithField("partitions", len(partitions)).Info("connected to kafka")
	return nil
}
