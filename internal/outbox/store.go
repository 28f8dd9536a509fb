package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"healink-eventcore/internal/events"
)

// UnitOfWork is a transactional boundary that commits staged business-entity
// mutations and staged outbox rows atomically: both become durable or neither
// does. Acquire with Store.Begin, then either SaveChangesWithOutbox or
// Rollback; the handle is single-use.
type UnitOfWork interface {
	// AddOutboxEvent stages a serialized outbox row for insertion. Nothing is
	// written until SaveChangesWithOutbox. Fails with xerrors.ErrSerialization
	// if the event cannot be encoded.
	AddOutboxEvent(evt events.Event) error

	// SaveChangesWithOutbox commits everything staged in this unit of work as
	// one transaction. On failure no partial state is visible and the error
	// wraps xerrors.ErrPersistence.
	SaveChangesWithOutbox(ctx context.Context) error

	Rollback(ctx context.Context) error
}

// Store is the durable outbox table plus the claim/ack surface the relay
// drives. Multiple relay instances may poll the same store concurrently;
// ClaimPending must hand each row to at most one of them.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)

	// ClaimPending atomically selects up to batchSize Pending rows whose
	// retry time has arrived, oldest first, and transitions them to
	// Processing. A row claimed by one relay instance is invisible to others
	// until its claim lease expires; a Processing row left behind by a
	// crashed relay becomes claimable again after the lease, which may
	// republish an event that was already sent. At-least-once, by contract.
	ClaimPending(ctx context.Context, batchSize int) ([]Event, error)

	// MarkProcessed finalizes a published row. Marking an already Processed
	// row again is a no-op, not an error.
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a retryable publish failure: it increments the retry
	// count, stores the error, schedules the next attempt with exponential
	// backoff, and returns the row to Pending - or parks it as Failed once the
	// retry ceiling is reached. The resulting status is returned.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (Status, error)

	// MarkFailedPermanently parks a row as Failed immediately, bypassing the
	// retry budget. Used for non-retryable conditions such as unknown event
	// types.
	MarkFailedPermanently(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Options tune the retry policy shared by store implementations.
type Options struct {
	// MaxRetries is how many publish failures a row survives before it is
	// parked as permanently Failed.
	MaxRetries int
	// RetryBackoff is the base delay before the first retry; it doubles per
	// attempt.
	RetryBackoff time.Duration
	// ClaimLease is how long a claimed row stays invisible to other claimers.
	// A Processing row older than the lease is treated as abandoned and
	// reclaimed. Must exceed the longest publish attempt.
	ClaimLease time.Duration
}
