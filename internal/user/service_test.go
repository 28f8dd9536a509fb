package user

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healink-eventcore/internal/eventbus"
	"healink-eventcore/internal/events"
	"healink-eventcore/internal/outbox"
	"healink-eventcore/pkg/logger"
	"healink-eventcore/pkg/xerrors"
)

func TestRegisterStagesUserRegisteredAtomically(t *testing.T) {
	outboxStore := outbox.NewMemoryStore(outbox.Options{})
	svc := NewService(NewMemoryStore(), outboxStore, logger.NewNop(), "user-service")

	correlation := uuid.New()
	u, err := svc.Register(context.Background(), RegisterRequest{
		Email:         "a@b.com",
		FullName:      "Test User",
		CorrelationID: correlation,
	})
	require.NoError(t, err)
	require.NotNil(t, u)

	rows := outboxStore.All()
	require.Len(t, rows, 1)
	assert.Equal(t, events.TypeUserRegistered, rows[0].EventType)
	assert.Equal(t, outbox.StatusPending, rows[0].Status)

	var evt events.UserRegistered
	require.NoError(t, json.Unmarshal(rows[0].Payload, &evt))
	assert.Equal(t, u.ID, evt.UserID)
	assert.Equal(t, "a@b.com", evt.Email)
	assert.Equal(t, correlation, evt.CorrelationID())
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	outboxStore := outbox.NewMemoryStore(outbox.Options{})
	svc := NewService(NewMemoryStore(), outboxStore, logger.NewNop(), "user-service")

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.com"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "a@b.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrPersistence)
	assert.Len(t, outboxStore.All(), 1)
}

func TestRegisterFailedCommitLeavesNoTrace(t *testing.T) {
	outboxStore := outbox.NewMemoryStore(outbox.Options{})
	store := NewMemoryStore()
	svc := NewService(store, outboxStore, logger.NewNop(), "user-service")

	outboxStore.FailNextCommit(xerrors.ErrPersistence)
	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.com"})
	require.Error(t, err)

	u, err := store.GetByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Empty(t, outboxStore.All())
}

func TestRegisterThenRelayDeliversExactlyOnce(t *testing.T) {
	outboxStore := outbox.NewMemoryStore(outbox.Options{})
	svc := NewService(NewMemoryStore(), outboxStore, logger.NewNop(), "user-service")

	bus := eventbus.NewMemoryBus()
	var mu sync.Mutex
	var delivered []events.UserRegistered
	require.NoError(t, bus.Subscribe(events.TypeUserRegistered, func(ctx context.Context, topic string, payload []byte) error {
		var evt events.UserRegistered
		if err := json.Unmarshal(payload, &evt); err != nil {
			return err
		}
		mu.Lock()
		delivered = append(delivered, evt)
		mu.Unlock()
		return nil
	}))

	u, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.com", FullName: "Test User"})
	require.NoError(t, err)

	relay := outbox.NewRelay(outboxStore, bus, events.DefaultRegistry(), logger.NewNop(), 10, time.Second, time.Second)
	relay.ProcessBatch(context.Background())
	relay.ProcessBatch(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 1)
	assert.Equal(t, u.ID, delivered[0].UserID)

	rows := outboxStore.All()
	require.Len(t, rows, 1)
	assert.Equal(t, outbox.StatusProcessed, rows[0].Status)
}
