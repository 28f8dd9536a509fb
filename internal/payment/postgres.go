package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healink-eventcore/internal/outbox"
	"healink-eventcore/pkg/database"
	"healink-eventcore/pkg/xerrors"
)

// PostgresStore keeps payment_transactions next to outbox_events so both are
// covered by one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// txProvider is satisfied by the postgres unit of work.
type txProvider interface {
	DB() database.DBTX
}

func workDB(uow outbox.UnitOfWork) (database.DBTX, error) {
	p, ok := uow.(txProvider)
	if !ok {
		return nil, fmt.Errorf("%w: unit of work is not postgres-backed", xerrors.ErrPersistence)
	}
	return p.DB(), nil
}

func (s *PostgresStore) Create(ctx context.Context, uow outbox.UnitOfWork, txn *Transaction) error {
	db, err := workDB(uow)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
        INSERT INTO payment_transactions
            (id, reference_id, amount, currency, status, gateway_name, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, now(), now())
    `, txn.ID, txn.ReferenceID, txn.Amount, txn.Currency, txn.Status, txn.GatewayName)
	if err != nil {
		return fmt.Errorf("%w: insert payment transaction: %v", xerrors.ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, uow outbox.UnitOfWork, id uuid.UUID, status Status, errMsg string) error {
	db, err := workDB(uow)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `
        UPDATE payment_transactions
        SET status = $1, error_message = $2, updated_at = now()
        WHERE id = $3 AND status = $4
    `, status, errMsg, id, StatusPending)
	if err != nil {
		return fmt.Errorf("%w: update payment status: %v", xerrors.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %s", errAlreadySettled, id)
	}
	return nil
}

func (s *PostgresStore) RecordGatewayResult(ctx context.Context, id uuid.UUID, reference string, raw []byte) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE payment_transactions
        SET gateway_reference = $1, gateway_response = $2, updated_at = now()
        WHERE id = $3
    `, reference, raw, id)
	if err != nil {
		return fmt.Errorf("%w: record gateway result: %v", xerrors.ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	txn, err := s.scanOne(s.pool.QueryRow(ctx, selectTransaction+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %s", xerrors.ErrUnknownTransaction, id)
		}
		return nil, err
	}
	return txn, nil
}

func (s *PostgresStore) GetByGatewayReference(ctx context.Context, reference string) (*Transaction, error) {
	txn, err := s.scanOne(s.pool.QueryRow(ctx, selectTransaction+` WHERE gateway_reference = $1`, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: gateway reference %q", xerrors.ErrUnknownTransaction, reference)
		}
		return nil, err
	}
	return txn, nil
}

const selectTransaction = `
    SELECT id, reference_id, amount, currency, status, gateway_name,
           COALESCE(gateway_reference, ''), gateway_response,
           COALESCE(error_message, ''), created_at, updated_at
    FROM payment_transactions`

func (s *PostgresStore) scanOne(row pgx.Row) (*Transaction, error) {
	var txn Transaction
	err := row.Scan(&txn.ID, &txn.ReferenceID, &txn.Amount, &txn.Currency, &txn.Status,
		&txn.GatewayName, &txn.GatewayReference, &txn.GatewayResponse,
		&txn.ErrorMessage, &txn.CreatedAt, &txn.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan payment transaction: %v", xerrors.ErrPersistence, err)
	}
	return &txn, nil
}
