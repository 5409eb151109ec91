package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/airseats/config"
	"github.com/Domenick1991/airseats/internal/email"
	"github.com/Domenick1991/airseats/internal/kafka"
	"github.com/Domenick1991/airseats/internal/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logr)
	defer consumer.Close()

	sender := email.NewSender(cfg.Mail, cfg.Tickets.Dir, logr)

	logr.WithField("topic", cfg.Kafka.NotificationsTopic).Info("notification worker started")
	err = consumer.ConsumeNotifications(ctx, func(ctx context.Context, event kafka.NotificationEvent) error {
		return sendWithRetry(ctx, sender, event, cfg.Worker.MaxRetries, logr)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logr.WithError(err).Fatal("consumer stopped")
	}
	logr.Info("notification worker stopped")
}

// sendWithRetry gives up on a message after maxRetries attempts so one bad
// address cannot stall the partition.
func sendWithRetry(ctx context.Context, sender *email.Sender, event kafka.NotificationEvent, maxRetries int, logr logrus.FieldLogger) error {
	entry := logr.WithField("booking_id", event.BookingID)
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := sender.Send(ctx, event)
		if err == nil {
			return nil
		}
		entry.WithError(err).WithField("attempt", attempt).Warn("send confirmation failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	entry.Error("dropping confirmation after retries")
	return nil
}
