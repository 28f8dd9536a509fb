package payment

import (
	"context"

	"github.com/google/uuid"

	"healink-eventcore/internal/outbox"
)

// Store persists payment transactions. Mutating methods that take a unit of
// work join the same atomic commit as the outbox rows staged on it.
type Store interface {
	// Create stages the insert of txn on uow.
	Create(ctx context.Context, uow outbox.UnitOfWork, txn *Transaction) error

	// UpdateStatus stages a status transition on uow. The transition is
	// guarded: it only applies while the transaction is still Pending, and
	// the losing side of a settle race fails with errAlreadySettled (for
	// the postgres store immediately, for the memory store at commit).
	UpdateStatus(ctx context.Context, uow outbox.UnitOfWork, id uuid.UUID, status Status, errMsg string) error

	// RecordGatewayResult stores the gateway reference and raw response for a
	// transaction, outside any unit of work: the reference must be durable the
	// moment the gateway answers, before the caller does anything else.
	RecordGatewayResult(ctx context.Context, id uuid.UUID, reference string, raw []byte) error

	Get(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetByGatewayReference resolves a callback's gateway reference to the
	// owning transaction, failing with xerrors.ErrUnknownTransaction when no
	// transaction carries it.
	GetByGatewayReference(ctx context.Context, reference string) (*Transaction, error)
}
