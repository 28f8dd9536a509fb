package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"healink-eventcore/internal/events"
	"healink-eventcore/pkg/xerrors"
)

// MemoryStore is an in-process Store for tests and single-binary development
// runs. It honors the same claim, retry and idempotency semantics as the
// postgres store.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Event
	opts Options

	clock     func() time.Time
	commitErr error
}

func NewMemoryStore(opts Options) *MemoryStore {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.ClaimLease <= 0 {
		opts.ClaimLease = 5 * time.Minute
	}
	return &MemoryStore{
		rows:  make(map[uuid.UUID]*Event),
		opts:  opts,
		clock: time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// FailNextCommit makes the next SaveChangesWithOutbox fail atomically. Test hook.
func (s *MemoryStore) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// All returns copies of every row, oldest first. Test hook.
func (s *MemoryStore) All() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Get returns a copy of a row. Test hook.
func (s *MemoryStore) Get(id uuid.UUID) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return Event{}, false
	}
	return *row, true
}

func (s *MemoryStore) Begin(ctx context.Context) (UnitOfWork, error) {
	return &memoryUnitOfWork{store: s}, nil
}

func (s *MemoryStore) ClaimPending(ctx context.Context, batchSize int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var due []*Event
	for _, row := range s.rows {
		switch row.Status {
		case StatusPending:
			if row.NextRetryAt != nil && row.NextRetryAt.After(now) {
				continue
			}
		case StatusProcessing:
			// A lapsed lease means the claiming relay died mid-batch.
			if now.Sub(row.UpdatedAt) < s.opts.ClaimLease {
				continue
			}
		default:
			continue
		}
		due = append(due, row)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > batchSize {
		due = due[:batchSize]
	}

	claimed := make([]Event, 0, len(due))
	for _, row := range due {
		row.Status = StatusProcessing
		row.UpdatedAt = now
		claimed = append(claimed, *row)
	}
	return claimed, nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.Status == StatusProcessed {
		return nil
	}
	now := s.clock()
	row.Status = StatusProcessed
	row.UpdatedAt = now
	row.ProcessedAt = &now
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return "", fmt.Errorf("%w: no such outbox event %s", xerrors.ErrPersistence, id)
	}
	if row.Status == StatusProcessed {
		return StatusProcessed, nil
	}

	row.RetryCount++
	row.LastError = errMsg
	row.UpdatedAt = s.clock()
	backoff := s.opts.RetryBackoff * (1 << (row.RetryCount - 1))
	next := s.clock().Add(backoff)
	row.NextRetryAt = &next

	if row.RetryCount >= s.opts.MaxRetries {
		row.Status = StatusFailed
	} else {
		row.Status = StatusPending
	}
	return row.Status, nil
}

func (s *MemoryStore) MarkFailedPermanently(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.Status == StatusProcessed {
		return nil
	}
	row.Status = StatusFailed
	row.LastError = errMsg
	row.UpdatedAt = s.clock()
	return nil
}

// memoryUnitOfWork stages outbox rows and business mutations, applying both
// under the store lock on commit so observers never see partial state.
type memoryUnitOfWork struct {
	store     *MemoryStore
	staged    []Event
	mutations []func() (apply func(), err error)
	done      bool
}

// Stage registers a business mutation to apply atomically with the staged
// outbox rows. Memory-backed business stores use this the way postgres-backed
// ones use the shared transaction. The prepare function runs under the store
// lock at commit; if any staged prepare fails, nothing is applied. The apply
// it returns must not fail.
func (u *memoryUnitOfWork) Stage(prepare func() (apply func(), err error)) {
	u.mutations = append(u.mutations, prepare)
}

func (u *memoryUnitOfWork) AddOutboxEvent(evt events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", xerrors.ErrSerialization, evt.EventType(), err)
	}
	u.staged = append(u.staged, Event{
		ID:        evt.EventID(),
		EventType: evt.EventType(),
		Payload:   payload,
		Status:    StatusPending,
	})
	return nil
}

func (u *memoryUnitOfWork) SaveChangesWithOutbox(ctx context.Context) error {
	if u.done {
		return fmt.Errorf("%w: unit of work already finished", xerrors.ErrPersistence)
	}
	u.done = true

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if err := u.store.commitErr; err != nil {
		u.store.commitErr = nil
		return fmt.Errorf("%w: commit: %v", xerrors.ErrPersistence, err)
	}

	applies := make([]func(), 0, len(u.mutations))
	for _, prepare := range u.mutations {
		apply, err := prepare()
		if err != nil {
			return fmt.Errorf("%w: commit: %w", xerrors.ErrPersistence, err)
		}
		applies = append(applies, apply)
	}
	for _, apply := range applies {
		apply()
	}
	now := u.store.clock()
	for i := range u.staged {
		row := u.staged[i]
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
		u.store.rows[row.ID] = &row
	}
	return nil
}

func (u *memoryUnitOfWork) Rollback(ctx context.Context) error {
	u.done = true
	u.staged = nil
	u.mutations = nil
	return nil
}
