package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"healink-eventcore/internal/outbox"
	"healink-eventcore/pkg/xerrors"
)

// MemoryStore is an in-process Store for tests. Mutations staged on a memory
// unit of work apply atomically with its outbox rows.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Transaction
	refs map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[uuid.UUID]*Transaction),
		refs: make(map[string]uuid.UUID),
	}
}

// stager is satisfied by the memory unit of work. The prepare function runs
// at commit; if it fails, nothing staged on the unit of work is applied.
type stager interface {
	Stage(prepare func() (apply func(), err error))
}

func stageOn(uow outbox.UnitOfWork, prepare func() (apply func(), err error)) error {
	s, ok := uow.(stager)
	if !ok {
		return fmt.Errorf("%w: unit of work is not memory-backed", xerrors.ErrPersistence)
	}
	s.Stage(prepare)
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, uow outbox.UnitOfWork, txn *Transaction) error {
	row := *txn
	return stageOn(uow, func() (func(), error) {
		return func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			now := time.Now()
			row.CreatedAt = now
			row.UpdatedAt = now
			s.rows[row.ID] = &row
		}, nil
	})
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, uow outbox.UnitOfWork, id uuid.UUID, status Status, errMsg string) error {
	return stageOn(uow, func() (func(), error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		row, ok := s.rows[id]
		if !ok {
			return nil, fmt.Errorf("no such transaction %s", id)
		}
		if row.Status != StatusPending {
			return nil, fmt.Errorf("%w: id %s", errAlreadySettled, id)
		}
		return func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			row.Status = status
			row.ErrorMessage = errMsg
			row.UpdatedAt = time.Now()
		}, nil
	})
}

func (s *MemoryStore) RecordGatewayResult(ctx context.Context, id uuid.UUID, reference string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("%w: id %s", xerrors.ErrUnknownTransaction, id)
	}
	row.GatewayReference = reference
	row.GatewayResponse = raw
	row.UpdatedAt = time.Now()
	s.refs[reference] = id
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", xerrors.ErrUnknownTransaction, id)
	}
	copied := *row
	return &copied, nil
}

func (s *MemoryStore) GetByGatewayReference(ctx context.Context, reference string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refs[reference]
	if !ok {
		return nil, fmt.Errorf("%w: gateway reference %q", xerrors.ErrUnknownTransaction, reference)
	}
	copied := *s.rows[id]
	return &copied, nil
}
