package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healink-eventcore/internal/eventbus"
	"healink-eventcore/internal/events"
	"healink-eventcore/pkg/logger"
	"healink-eventcore/pkg/metrics"
)

// Consumer subscribes to notification-bearing integration events and routes
// each to its channel sender. Events are deduplicated by event id before any
// send, since the relay delivers at least once.
type Consumer struct {
	factory  *Factory
	registry *events.Registry
	dedup    Deduper
	log      *logger.Logger
}

func NewConsumer(factory *Factory, registry *events.Registry, dedup Deduper, log *logger.Logger) *Consumer {
	return &Consumer{factory: factory, registry: registry, dedup: dedup, log: log}
}

// Topics lists the event types this consumer handles.
func (c *Consumer) Topics() []string {
	return []string{
		events.TypeNotificationRequested,
		events.TypeUserRegistered,
		events.TypeResetPasswordOtp,
	}
}

func (c *Consumer) Bind(bus eventbus.Bus) error {
	for _, topic := range c.Topics() {
		if err := bus.Subscribe(topic, c.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (c *Consumer) Handle(ctx context.Context, topic string, payload []byte) error {
	evt, err := c.registry.Decode(topic, payload)
	if err != nil {
		c.log.Error("decode notification event", zap.String("topic", topic), zap.Error(err))
		return err
	}

	first, err := c.dedup.FirstSeen(ctx, evt.EventID())
	if err != nil {
		c.log.Error("dedup check", zap.Stringer("event_id", evt.EventID()), zap.Error(err))
		return err
	}
	if !first {
		c.log.Debug("duplicate event skipped",
			zap.Stringer("event_id", evt.EventID()),
			zap.String("event_type", topic))
		return nil
	}

	switch e := evt.(type) {
	case *events.NotificationRequested:
		return c.handleRequested(ctx, e)
	case *events.UserRegistered:
		return c.sendOne(ctx, e.Base, ChannelEmail, Request{
			Template: TemplateWelcome,
			Data:     map[string]string{"full_name": e.FullName},
		}, Recipient{Address: e.Email, Channel: ChannelEmail, Name: e.FullName})
	case *events.ResetPasswordOtp:
		return c.sendOne(ctx, e.Base, ChannelEmail, Request{
			Template: TemplateResetPasswordOtp,
			Data: map[string]string{
				"otp":        e.Otp,
				"expires_at": e.ExpiresAt.Format(time.RFC3339),
			},
		}, Recipient{Address: e.Email, Channel: ChannelEmail})
	default:
		c.log.Warn("event type has no notification handler", zap.String("event_type", topic))
		return nil
	}
}

func (c *Consumer) handleRequested(ctx context.Context, e *events.NotificationRequested) error {
	channel := Channel(e.Channel)
	sender, err := c.factory.GetSender(channel)
	if err != nil {
		c.log.Error("resolve notification sender",
			zap.Stringer("event_id", e.EventID()),
			zap.String("channel", e.Channel),
			zap.Error(err))
		return err
	}

	rcpts := make([]Recipient, len(e.Recipients))
	for i, addr := range e.Recipients {
		rcpts[i] = Recipient{Address: addr, Channel: channel}
	}

	results := sender.SendMulticast(ctx, Request{
		Subject:  e.Subject,
		Body:     e.Body,
		Template: e.Template,
		Data:     e.Data,
	}, rcpts)
	c.account(channel, e, results)
	return nil
}

func (c *Consumer) sendOne(ctx context.Context, base events.Base, channel Channel, req Request, rcpt Recipient) error {
	sender, err := c.factory.GetSender(channel)
	if err != nil {
		c.log.Error("resolve notification sender",
			zap.Stringer("event_id", base.EventID()),
			zap.String("channel", string(channel)),
			zap.Error(err))
		return err
	}
	result := sender.Send(ctx, req, rcpt)
	c.account(channel, base, []SendResult{result})
	return nil
}

func (c *Consumer) account(channel Channel, evt events.Event, results []SendResult) {
	for _, res := range results {
		if res.Success {
			metrics.NotificationSends.WithLabelValues(string(channel), "ok").Inc()
			continue
		}
		metrics.NotificationSends.WithLabelValues(string(channel), "error").Inc()
		c.log.Warn("notification send failed",
			zap.Stringer("event_id", evt.EventID()),
			zap.Stringer("correlation_id", evt.CorrelationID()),
			zap.String("source_service", evt.Source()),
			zap.String("channel", string(channel)),
			zap.String("recipient", res.Recipient),
			zap.String("error", res.Error))
	}
}
