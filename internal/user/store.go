package user

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

type Store interface {
	// Create stages the insert of u on uow.
	Create(ctx context.Context, uow outbox.UnitOfWork, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, uow outbox.UnitOfWork, u *User) error {
	p, ok := uow.(interface{ DB() database.DBTX })
	if !ok {
		return fmt.Errorf("%w: unit of work is not postgres-backed", xerrors.ErrPersistence)
	}
	_, err := p.DB().Exec(ctx, `
        INSERT INTO users (id, email, full_name, created_at)
        VALUES ($1, $2, $3, now())
    `, u.ID, u.Email, u.FullName)
	if err != nil {
		return fmt.Errorf("%w: insert user: %v", xerrors.ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
        SELECT id, email, full_name, created_at FROM users WHERE email = $1
    `, email).Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user by email: %v", xerrors.ErrPersistence, err)
	}
	return &u, nil
}

// MemoryStore backs tests; mutations join the memory unit of work commit.
type MemoryStore struct {
	users map[uuid.UUID]*User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uuid.UUID]*User)}
}

func (s *MemoryStore) Create(ctx context.Context, uow outbox.UnitOfWork, u *User) error {
	st, ok := uow.(interface {
		Stage(prepare func() (apply func(), err error))
	})
	if !ok {
		return fmt.Errorf("%w: unit of work is not memory-backed", xerrors.ErrPersistence)
	}
	row := *u
	st.Stage(func() (func(), error) {
		return func() { s.users[row.ID] = &row }, nil
	})
	return nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}
