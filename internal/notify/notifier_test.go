package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/Domenick1991/airseats/internal/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error {
	args := m.Called(ctx, topic, key, value, maxRetries)
	return args.Error(0)
}

func TestKafkaNotifier_SendConfirmation(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishWithRetry", mock.Anything, "notifications", "b1", mock.MatchedBy(func(e kafka.NotificationEvent) bool {
		return e.Type == EventBookingConfirmed && e.Email == "a@b.c" && e.TicketReference == "ref"
	}), 3).Return(nil)

	err := NewKafkaNotifier(pub, "notifications", 3).SendConfirmation(context.Background(), "a@b.c", "b1", "ref")

	assert.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestKafkaNotifier_Errors(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishWithRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, 1).Return(errors.New("broker down"))
	n := NewKafkaNotifier(pub, "notifications", 0)

	assert.Error(t, n.SendConfirmation(context.Background(), "", "b1", "ref"))
	assert.ErrorContains(t, n.SendConfirmation(context.Background(), "a@b.c", "b1", "ref"), "broker down")
}
