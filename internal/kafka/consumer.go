package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// NotificationHandler processes one decoded notification. Returning an error
// stops consumption without committing the message.
type NotificationHandler func(ctx context.Context, event NotificationEvent) error

type Consumer struct {
	reader *kafka.Reader
	log    logrus.FieldLogger
}

func NewConsumer(brokers []string, groupID, topic string, log logrus.FieldLogger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			MinBytes:          1,
			MaxBytes:          1 << 20,
			StartOffset:       kafka.FirstOffset,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		log: log,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// ConsumeNotifications fetches notifications and commits each one only after
// handle succeeds, so a failed delivery is redelivered after a restart.
// Undecodable messages are committed and skipped.
func (c *Consumer) ConsumeNotifications(ctx context.Context, handle NotificationHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		event, err := DecodeNotification(msg.Value)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Error("skipping undecodable notification")
		} else if err := handle(ctx, event); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func DecodeNotification(data []byte) (NotificationEvent, error) {
	var event NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return NotificationEvent{}, fmt.Errorf("decode notification: %w", err)
	}
	if event.BookingID == "" {
		return NotificationEvent{}, errors.New("notification without booking id")
	}
	return event, nil
}
