package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healink-eventcore/internal/events"
	"healink-eventcore/internal/outbox"
	"healink-eventcore/pkg/logger"
)

// Service creates payment intents. The internal transaction id is allocated
// and committed - together with a PaymentIntentCreated outbox row - before the
// gateway is called, so an asynchronous callback can always be joined back to
// internal state.
type Service struct {
	store          Store
	outboxStore    outbox.Store
	gateway        Gateway
	log            *logger.Logger
	serviceName    string
	gatewayTimeout time.Duration
}

func NewService(store Store, outboxStore outbox.Store, gateway Gateway, log *logger.Logger,
	serviceName string, gatewayTimeout time.Duration) *Service {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	return &Service{
		store:          store,
		outboxStore:    outboxStore,
		gateway:        gateway,
		log:            log,
		serviceName:    serviceName,
		gatewayTimeout: gatewayTimeout,
	}
}

// IntentInput is what an initiating service supplies to open an intent.
type IntentInput struct {
	ReferenceID   uuid.UUID
	Amount        int64
	Currency      string
	Description   string
	Metadata      map[string]string
	CorrelationID uuid.UUID
}

func (s *Service) CreateIntent(ctx context.Context, in IntentInput) (*IntentResult, error) {
	txn := &Transaction{
		ID:          uuid.New(),
		ReferenceID: in.ReferenceID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Status:      StatusPending,
		GatewayName: s.gateway.Name(),
	}

	// Persist the Pending transaction and announce it in one commit.
	uow, err := s.outboxStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, uow, txn); err != nil {
		_ = uow.Rollback(ctx)
		return nil, err
	}
	if err := uow.AddOutboxEvent(&events.PaymentIntentCreated{
		Base:                 events.NewBase(events.TypePaymentIntentCreated, s.serviceName, in.CorrelationID),
		PaymentTransactionID: txn.ID,
		ReferenceID:          in.ReferenceID,
		Amount:               in.Amount,
		Currency:             in.Currency,
		GatewayName:          s.gateway.Name(),
	}); err != nil {
		_ = uow.Rollback(ctx)
		return nil, err
	}
	if err := uow.SaveChangesWithOutbox(ctx); err != nil {
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	resp, err := s.gateway.CreateIntent(gwCtx, IntentRequest{
		InternalID:  txn.ID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
		Metadata:    in.Metadata,
	})
	cancel()
	if err != nil {
		s.log.Error("gateway create intent",
			zap.Stringer("payment_transaction_id", txn.ID),
			zap.String("gateway", s.gateway.Name()),
			zap.Error(err))
		if failErr := s.failIntent(ctx, txn, in.CorrelationID, err); failErr != nil {
			s.log.Error("record failed intent", zap.Stringer("payment_transaction_id", txn.ID), zap.Error(failErr))
		}
		return nil, err
	}

	// The gateway reference is the join key for callbacks; record it the
	// moment the gateway answers.
	if err := s.store.RecordGatewayResult(ctx, txn.ID, resp.Reference, resp.Raw); err != nil {
		return nil, err
	}

	s.log.Info("payment intent created",
		zap.Stringer("payment_transaction_id", txn.ID),
		zap.String("gateway", s.gateway.Name()),
		zap.String("gateway_reference", resp.Reference))

	return &IntentResult{PaymentTransactionID: txn.ID, GatewayResponse: resp.Raw}, nil
}

func (s *Service) failIntent(ctx context.Context, txn *Transaction, correlation uuid.UUID, cause error) error {
	uow, err := s.outboxStore.Begin(ctx)
	if err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, uow, txn.ID, StatusFailed, cause.Error()); err != nil {
		_ = uow.Rollback(ctx)
		// A callback settled the transaction while the gateway call was
		// erroring out; its outcome stands.
		if errors.Is(err, errAlreadySettled) {
			return nil
		}
		return err
	}
	if err := uow.AddOutboxEvent(&events.PaymentFailed{
		Base:                 events.NewBase(events.TypePaymentFailed, s.serviceName, correlation),
		PaymentTransactionID: txn.ID,
		Reason:               fmt.Sprintf("gateway initialization failed: %v", cause),
	}); err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	if err := uow.SaveChangesWithOutbox(ctx); err != nil {
		if errors.Is(err, errAlreadySettled) {
			return nil
		}
		return err
	}
	return nil
}
