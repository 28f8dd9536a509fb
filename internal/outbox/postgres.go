package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healink-eventcore/internal/events"
	"healink-eventcore/pkg/database"
	"healink-eventcore/pkg/xerrors"
)

// PostgresStore persists outbox rows in the outbox_events table, co-located
// with the owning service's business tables so one transaction covers both.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts Options
}

func NewPostgresStore(pool *pgxpool.Pool, opts Options) *PostgresStore {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.ClaimLease <= 0 {
		opts.ClaimLease = 5 * time.Minute
	}
	return &PostgresStore{pool: pool, opts: opts}
}

func (s *PostgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", xerrors.ErrPersistence, err)
	}
	return &pgUnitOfWork{tx: tx, clock: time.Now}, nil
}

// ClaimPending selects the oldest due Pending rows and flips them to
// Processing in one statement. SKIP LOCKED keeps concurrent relay instances
// from claiming the same row. Processing rows whose claim lease has lapsed
// belong to a relay that died mid-batch and are claimed again.
func (s *PostgresStore) ClaimPending(ctx context.Context, batchSize int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
        UPDATE outbox_events
        SET status = $1, updated_at = now()
        WHERE id IN (
            SELECT id FROM outbox_events
            WHERE (status = $2 AND (next_retry_at IS NULL OR next_retry_at <= now()))
               OR (status = $1 AND updated_at < now() - ($4 * interval '1 second'))
            ORDER BY created_at ASC
            LIMIT $3
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, event_type, payload, status, retry_count, last_error, created_at, updated_at, processed_at, next_retry_at
    `, StatusProcessing, StatusPending, batchSize, s.opts.ClaimLease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: claim pending: %v", xerrors.ErrPersistence, err)
	}
	defer rows.Close()

	var claimed []Event
	for rows.Next() {
		var e Event
		var lastError *string
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Status, &e.RetryCount,
			&lastError, &e.CreatedAt, &e.UpdatedAt, &e.ProcessedAt, &e.NextRetryAt); err != nil {
			return nil, fmt.Errorf("%w: scan claimed row: %v", xerrors.ErrPersistence, err)
		}
		if lastError != nil {
			e.LastError = *lastError
		}
		claimed = append(claimed, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: claim pending: %v", xerrors.ErrPersistence, err)
	}
	return claimed, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, processed_at = now(), updated_at = now()
        WHERE id = $2 AND status <> $1
    `, StatusProcessed, id)
	if err != nil {
		return fmt.Errorf("%w: mark processed: %v", xerrors.ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (Status, error) {
	var status Status
	err := s.pool.QueryRow(ctx, `
        UPDATE outbox_events
        SET retry_count = retry_count + 1,
            last_error = $2,
            next_retry_at = now() + ($3 * interval '1 second') * power(2, retry_count),
            status = CASE WHEN retry_count + 1 >= $4 THEN $5::text ELSE $6::text END,
            updated_at = now()
        WHERE id = $1 AND status <> $7
        RETURNING status
    `, id, errMsg, s.opts.RetryBackoff.Seconds(), s.opts.MaxRetries,
		string(StatusFailed), string(StatusPending), StatusProcessed).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatusProcessed, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: mark failed: %v", xerrors.ErrPersistence, err)
	}
	return status, nil
}

func (s *PostgresStore) MarkFailedPermanently(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, last_error = $2, updated_at = now()
        WHERE id = $3 AND status <> $4
    `, StatusFailed, errMsg, id, StatusProcessed)
	if err != nil {
		return fmt.Errorf("%w: mark failed permanently: %v", xerrors.ErrPersistence, err)
	}
	return nil
}

// pgUnitOfWork wraps a pgx transaction. Business repositories write through
// DB() so their mutations land in the same commit as the staged outbox rows.
type pgUnitOfWork struct {
	tx     pgx.Tx
	staged []Event
	clock  func() time.Time
	done   bool
}

// DB exposes the transaction-scoped executor for co-located business writes.
func (u *pgUnitOfWork) DB() database.DBTX {
	return u.tx
}

func (u *pgUnitOfWork) AddOutboxEvent(evt events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", xerrors.ErrSerialization, evt.EventType(), err)
	}
	u.staged = append(u.staged, Event{
		ID:        evt.EventID(),
		EventType: evt.EventType(),
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: u.clock().UTC(),
	})
	return nil
}

func (u *pgUnitOfWork) SaveChangesWithOutbox(ctx context.Context) error {
	if u.done {
		return fmt.Errorf("%w: unit of work already finished", xerrors.ErrPersistence)
	}
	for _, e := range u.staged {
		_, err := u.tx.Exec(ctx, `
            INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $6)
        `, e.ID, e.EventType, e.Payload, e.Status, e.RetryCount, e.CreatedAt)
		if err != nil {
			_ = u.tx.Rollback(ctx)
			u.done = true
			return fmt.Errorf("%w: insert outbox event %s: %v", xerrors.ErrPersistence, e.ID, err)
		}
	}
	if err := u.tx.Commit(ctx); err != nil {
		_ = u.tx.Rollback(ctx)
		u.done = true
		return fmt.Errorf("%w: commit: %v", xerrors.ErrPersistence, err)
	}
	u.done = true
	u.staged = nil
	return nil
}

func (u *pgUnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: rollback: %v", xerrors.ErrPersistence, err)
	}
	return nil
}
