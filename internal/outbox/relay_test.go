package outbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healink-eventcore/internal/eventbus"
	"healink-eventcore/internal/events"
	"healink-eventcore/pkg/logger"
	"healink-eventcore/pkg/xerrors"
)

type stubBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	failWith  error
}

func newStubBus() *stubBus {
	return &stubBus{published: make(map[string][][]byte)}
}

func (b *stubBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	b.published[topic] = append(b.published[topic], payload)
	return nil
}

func (b *stubBus) Subscribe(topic string, handler eventbus.Handler) error { return nil }

func (b *stubBus) Close() error { return nil }

func (b *stubBus) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[topic])
}

func newRelayFor(store Store, bus eventbus.Bus, registry *events.Registry) *Relay {
	return NewRelay(store, bus, registry, logger.NewNop(), 10, time.Second, time.Second)
}

func TestProcessBatchPublishesAndMarksProcessed(t *testing.T) {
	store := NewMemoryStore(Options{})
	bus := newStubBus()
	relay := newRelayFor(store, bus, events.DefaultRegistry())

	evt := newUserEvent()
	stage(t, store, evt)

	relay.ProcessBatch(context.Background())

	require.Equal(t, 1, bus.count(events.TypeUserRegistered))
	row, ok := store.Get(evt.EventID())
	require.True(t, ok)
	assert.Equal(t, StatusProcessed, row.Status)
	require.NotNil(t, row.ProcessedAt)

	// A second cycle finds nothing to do.
	relay.ProcessBatch(context.Background())
	assert.Equal(t, 1, bus.count(events.TypeUserRegistered))
}

func TestProcessBatchRetriesTransportFailure(t *testing.T) {
	store := NewMemoryStore(Options{MaxRetries: 2, RetryBackoff: time.Second})
	bus := newStubBus()
	bus.failWith = fmt.Errorf("%w: broker unreachable", xerrors.ErrTransport)
	relay := newRelayFor(store, bus, events.DefaultRegistry())

	evt := newUserEvent()
	stage(t, store, evt)

	relay.ProcessBatch(context.Background())

	row, ok := store.Get(evt.EventID())
	require.True(t, ok)
	assert.Equal(t, StatusPending, row.Status)
	assert.Equal(t, 1, row.RetryCount)
	assert.Contains(t, row.LastError, "broker unreachable")
	require.NotNil(t, row.NextRetryAt)

	// Not due yet, so the next cycle must leave the row alone.
	relay.ProcessBatch(context.Background())
	row, _ = store.Get(evt.EventID())
	assert.Equal(t, 1, row.RetryCount)

	// Past the backoff window the retry runs and exhausts the ceiling.
	store.SetClock(func() time.Time { return time.Now().Add(time.Minute) })
	relay.ProcessBatch(context.Background())

	row, _ = store.Get(evt.EventID())
	assert.Equal(t, StatusFailed, row.Status)
	assert.Equal(t, 2, row.RetryCount)
	assert.Equal(t, 0, bus.count(events.TypeUserRegistered))
}

func TestProcessBatchRecoversAfterTransientFailure(t *testing.T) {
	store := NewMemoryStore(Options{MaxRetries: 5, RetryBackoff: time.Second})
	bus := newStubBus()
	bus.failWith = fmt.Errorf("%w: broker unreachable", xerrors.ErrTransport)
	relay := newRelayFor(store, bus, events.DefaultRegistry())

	evt := newUserEvent()
	stage(t, store, evt)
	relay.ProcessBatch(context.Background())

	bus.mu.Lock()
	bus.failWith = nil
	bus.mu.Unlock()
	store.SetClock(func() time.Time { return time.Now().Add(time.Minute) })
	relay.ProcessBatch(context.Background())

	row, _ := store.Get(evt.EventID())
	assert.Equal(t, StatusProcessed, row.Status)
	assert.Equal(t, 1, bus.count(events.TypeUserRegistered))
}

func TestProcessBatchParksUndecodableEvent(t *testing.T) {
	store := NewMemoryStore(Options{})
	bus := newStubBus()
	// An empty registry stands in for a relay running behind the producers'
	// event catalog.
	relay := newRelayFor(store, bus, events.NewRegistry())

	evt := newUserEvent()
	stage(t, store, evt)

	relay.ProcessBatch(context.Background())

	row, ok := store.Get(evt.EventID())
	require.True(t, ok)
	assert.Equal(t, StatusFailed, row.Status)
	assert.Contains(t, row.LastError, events.TypeUserRegistered)
	assert.Equal(t, 0, bus.count(events.TypeUserRegistered))
}

func TestProcessBatchRecoversAbandonedClaim(t *testing.T) {
	store := NewMemoryStore(Options{ClaimLease: time.Minute})
	bus := newStubBus()
	relay := newRelayFor(store, bus, events.DefaultRegistry())

	evt := newUserEvent()
	stage(t, store, evt)

	// A relay instance claims the row and dies before publishing.
	claimed, err := store.ClaimPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// While the lease is live the row stays invisible.
	relay.ProcessBatch(context.Background())
	assert.Equal(t, 0, bus.count(events.TypeUserRegistered))
	row, _ := store.Get(evt.EventID())
	assert.Equal(t, StatusProcessing, row.Status)

	// A later cycle reclaims and publishes it.
	store.SetClock(func() time.Time { return time.Now().Add(time.Hour) })
	relay.ProcessBatch(context.Background())

	assert.Equal(t, 1, bus.count(events.TypeUserRegistered))
	row, _ = store.Get(evt.EventID())
	assert.Equal(t, StatusProcessed, row.Status)
}
