package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healink-eventcore/internal/events"
	"healink-eventcore/internal/outbox"
	"healink-eventcore/pkg/logger"
	"healink-eventcore/pkg/xerrors"
)

type Service struct {
	store       Store
	outboxStore outbox.Store
	log         *logger.Logger
	serviceName string
}

func NewService(store Store, outboxStore outbox.Store, log *logger.Logger, serviceName string) *Service {
	return &Service{store: store, outboxStore: outboxStore, log: log, serviceName: serviceName}
}

// Register persists the account and stages a UserRegistered event atomically.
// If the commit fails, neither the user nor the event is visible.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	existing, err := s.store.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email %q already registered", xerrors.ErrPersistence, req.Email)
	}

	u := &User{ID: uuid.New(), Email: req.Email, FullName: req.FullName}

	uow, err := s.outboxStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, uow, u); err != nil {
		_ = uow.Rollback(ctx)
		return nil, err
	}
	if err := uow.AddOutboxEvent(&events.UserRegistered{
		Base:     events.NewBase(events.TypeUserRegistered, s.serviceName, req.CorrelationID),
		UserID:   u.ID,
		Email:    u.Email,
		FullName: u.FullName,
	}); err != nil {
		_ = uow.Rollback(ctx)
		return nil, err
	}
	if err := uow.SaveChangesWithOutbox(ctx); err != nil {
		return nil, err
	}

	s.log.Info("user registered",
		zap.Stringer("user_id", u.ID),
		zap.String("email", u.Email))
	return u, nil
}
