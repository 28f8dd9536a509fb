package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healink-eventcore/internal/events"
	"healink-eventcore/pkg/logger"
	"healink-eventcore/pkg/xerrors"
)

func newTestConsumer(provider ProviderClient) *Consumer {
	return NewConsumer(emailFactory(provider), events.DefaultRegistry(), NewMemoryDeduper(), logger.NewNop())
}

func marshalEvent(t *testing.T, evt events.Event) []byte {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return payload
}

func TestConsumerFansOutNotificationRequested(t *testing.T) {
	provider := newFakeProvider()
	consumer := newTestConsumer(provider)

	evt := &events.NotificationRequested{
		Base:       events.NewBase(events.TypeNotificationRequested, "billing-service", uuid.New()),
		Channel:    string(ChannelEmail),
		Recipients: []string{"a@example.com", "b@example.com"},
		Subject:    "Invoice ready",
		Body:       "Your invoice is attached.",
	}

	err := consumer.Handle(context.Background(), events.TypeNotificationRequested, marshalEvent(t, evt))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, provider.delivered())
}

func TestConsumerSkipsDuplicateDeliveries(t *testing.T) {
	provider := newFakeProvider()
	consumer := newTestConsumer(provider)

	evt := &events.NotificationRequested{
		Base:       events.NewBase(events.TypeNotificationRequested, "billing-service", uuid.New()),
		Channel:    string(ChannelEmail),
		Recipients: []string{"a@example.com"},
		Subject:    "Invoice ready",
	}
	payload := marshalEvent(t, evt)

	require.NoError(t, consumer.Handle(context.Background(), events.TypeNotificationRequested, payload))
	require.NoError(t, consumer.Handle(context.Background(), events.TypeNotificationRequested, payload))

	assert.Len(t, provider.delivered(), 1)
}

func TestConsumerSendsWelcomeEmailOnUserRegistered(t *testing.T) {
	provider := newFakeProvider()
	consumer := newTestConsumer(provider)

	evt := &events.UserRegistered{
		Base:     events.NewBase(events.TypeUserRegistered, "user-service", uuid.New()),
		UserID:   uuid.New(),
		Email:    "maria@example.com",
		FullName: "Maria",
	}

	err := consumer.Handle(context.Background(), events.TypeUserRegistered, marshalEvent(t, evt))
	require.NoError(t, err)

	require.Equal(t, []string{"maria@example.com"}, provider.delivered())
	assert.Equal(t, "Welcome to Healink", provider.subjects["maria@example.com"])
}

func TestConsumerSendsOtpEmail(t *testing.T) {
	provider := newFakeProvider()
	consumer := newTestConsumer(provider)

	evt := &events.ResetPasswordOtp{
		Base:      events.NewBase(events.TypeResetPasswordOtp, "user-service", uuid.New()),
		Email:     "maria@example.com",
		Otp:       "482913",
		ExpiresAt: time.Now().Add(10 * time.Minute).UTC(),
	}

	err := consumer.Handle(context.Background(), events.TypeResetPasswordOtp, marshalEvent(t, evt))
	require.NoError(t, err)

	require.Equal(t, []string{"maria@example.com"}, provider.delivered())
	assert.Equal(t, "Your password reset code", provider.subjects["maria@example.com"])
}

func TestConsumerRejectsUnsupportedChannel(t *testing.T) {
	consumer := newTestConsumer(newFakeProvider())

	evt := &events.NotificationRequested{
		Base:       events.NewBase(events.TypeNotificationRequested, "billing-service", uuid.New()),
		Channel:    "carrier-pigeon",
		Recipients: []string{"a@example.com"},
	}

	err := consumer.Handle(context.Background(), events.TypeNotificationRequested, marshalEvent(t, evt))
	assert.ErrorIs(t, err, xerrors.ErrUnsupportedChannel)
}

func TestConsumerRejectsUnknownTopic(t *testing.T) {
	consumer := newTestConsumer(newFakeProvider())

	err := consumer.Handle(context.Background(), "Mystery", []byte(`{}`))
	assert.ErrorIs(t, err, xerrors.ErrUnknownEventType)
}
