package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"healink-eventcore/internal/eventbus"
	"healink-eventcore/internal/events"
	"healink-eventcore/pkg/logger"
	"healink-eventcore/pkg/metrics"
)

// Relay drains the outbox and publishes events to the bus. Delivery is
// at-least-once: a crash between a successful publish and MarkProcessed means
// a duplicate publish after restart, so consumers deduplicate by event id.
type Relay struct {
	store    Store
	bus      eventbus.Bus
	registry *events.Registry
	log      *logger.Logger

	batchSize      int
	interval       time.Duration
	publishTimeout time.Duration
}

func NewRelay(store Store, bus eventbus.Bus, registry *events.Registry, log *logger.Logger,
	batchSize int, interval, publishTimeout time.Duration) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}
	return &Relay{
		store:          store,
		bus:            bus,
		registry:       registry,
		log:            log,
		batchSize:      batchSize,
		interval:       interval,
		publishTimeout: publishTimeout,
	}
}

// Run polls until ctx is canceled. The batch in flight when cancellation
// arrives is drained before Run returns.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch claims one batch and relays every row. Rows are independent, so
// publishing runs in parallel per row; batch selection stays oldest-first to
// bound staleness. Failures are contained per row and never abort siblings.
func (r *Relay) ProcessBatch(ctx context.Context) {
	batch, err := r.store.ClaimPending(ctx, r.batchSize)
	if err != nil {
		r.log.Error("claim pending outbox events", zap.Error(err))
		return
	}
	if len(batch) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, row := range batch {
		wg.Add(1)
		go func(row Event) {
			defer wg.Done()
			r.relayOne(ctx, row)
		}(row)
	}
	wg.Wait()
}

func (r *Relay) relayOne(ctx context.Context, row Event) {
	// Status transitions must survive shutdown of a batch already in flight.
	markCtx := context.WithoutCancel(ctx)

	evt, err := r.registry.Decode(row.EventType, row.Payload)
	if err != nil {
		// Configuration or versioning mismatch. Retrying cannot help; park the
		// row where monitoring can find it.
		if markErr := r.store.MarkFailedPermanently(markCtx, row.ID, err.Error()); markErr != nil {
			r.log.Error("park undecodable outbox event", zap.Stringer("event_id", row.ID), zap.Error(markErr))
			return
		}
		metrics.OutboxDead.Inc()
		r.log.Error("outbox event not decodable",
			zap.Stringer("event_id", row.ID),
			zap.String("event_type", row.EventType),
			zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	err = r.bus.Publish(pubCtx, evt.EventType(), row.Payload)
	cancel()
	if err != nil {
		status, markErr := r.store.MarkFailed(markCtx, row.ID, err.Error())
		if markErr != nil {
			r.log.Error("record outbox publish failure", zap.Stringer("event_id", row.ID), zap.Error(markErr))
			return
		}
		if status == StatusFailed {
			metrics.OutboxDead.Inc()
			r.log.Error("outbox event permanently failed",
				zap.Stringer("event_id", row.ID),
				zap.String("event_type", row.EventType),
				zap.Int("retry_count", row.RetryCount+1),
				zap.Error(err))
		} else {
			metrics.OutboxRetried.Inc()
			r.log.Warn("outbox publish failed, will retry",
				zap.Stringer("event_id", row.ID),
				zap.String("event_type", row.EventType),
				zap.Error(err))
		}
		return
	}

	if err := r.store.MarkProcessed(markCtx, row.ID); err != nil {
		// The publish went out; on restart the row is claimed and published
		// again. At-least-once, by contract.
		r.log.Error("mark outbox event processed", zap.Stringer("event_id", row.ID), zap.Error(err))
		return
	}
	metrics.OutboxPublished.Inc()
	r.log.Debug("outbox event published",
		zap.Stringer("event_id", row.ID),
		zap.String("event_type", row.EventType),
		zap.Stringer("correlation_id", evt.CorrelationID()))
}
