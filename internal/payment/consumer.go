package payment

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healink-eventcore/internal/eventbus"
	"healink-eventcore/internal/events"
	"healink-eventcore/pkg/logger"
)

// Deduper remembers consumed event ids; the notification package's redis and
// memory implementations both satisfy it.
type Deduper interface {
	FirstSeen(ctx context.Context, id uuid.UUID) (bool, error)
}

// Consumer handles PaymentIntentRequested events from other services, the way
// the subscription service asks for an intent without calling payment over
// HTTP. Deduplicated by event id; the bus delivers at least once.
type Consumer struct {
	service  *Service
	registry *events.Registry
	dedup    Deduper
	log      *logger.Logger
}

func NewConsumer(service *Service, registry *events.Registry, dedup Deduper, log *logger.Logger) *Consumer {
	return &Consumer{service: service, registry: registry, dedup: dedup, log: log}
}

func (c *Consumer) Bind(bus eventbus.Bus) error {
	return bus.Subscribe(events.TypePaymentIntentRequested, c.Handle)
}

func (c *Consumer) Handle(ctx context.Context, topic string, payload []byte) error {
	evt, err := c.registry.Decode(topic, payload)
	if err != nil {
		c.log.Error("decode payment event", zap.String("topic", topic), zap.Error(err))
		return err
	}
	req, ok := evt.(*events.PaymentIntentRequested)
	if !ok {
		return nil
	}

	first, err := c.dedup.FirstSeen(ctx, req.EventID())
	if err != nil {
		return err
	}
	if !first {
		c.log.Debug("duplicate intent request skipped", zap.Stringer("event_id", req.EventID()))
		return nil
	}

	_, err = c.service.CreateIntent(ctx, IntentInput{
		ReferenceID:   req.ReferenceID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   req.Description,
		Metadata:      req.Metadata,
		CorrelationID: req.CorrelationID(),
	})
	if err != nil {
		c.log.Error("create payment intent from event",
			zap.Stringer("event_id", req.EventID()),
			zap.Error(err))
	}
	// Failures are announced through the outbox; do not make the bus redeliver.
	return nil
}
