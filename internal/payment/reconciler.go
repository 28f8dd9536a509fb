package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healink-eventcore/internal/events"
	"healink-eventcore/internal/outbox"
	"healink-eventcore/pkg/logger"
)

// Reconciler applies verified gateway callbacks to their owning transactions.
// Reconciliation is idempotent: a callback for a transaction that already left
// Pending is a no-op, so webhook redeliveries cannot double-transition state.
// The status read here is only a fast path; the store's Pending-only
// transition guard is what holds under concurrent redeliveries.
type Reconciler struct {
	store       Store
	outboxStore outbox.Store
	gateway     Gateway
	log         *logger.Logger
	serviceName string
}

func NewReconciler(store Store, outboxStore outbox.Store, gateway Gateway, log *logger.Logger, serviceName string) *Reconciler {
	return &Reconciler{
		store:       store,
		outboxStore: outboxStore,
		gateway:     gateway,
		log:         log,
		serviceName: serviceName,
	}
}

// HandleCallback verifies the payload, resolves the gateway reference to the
// owning transaction, transitions its status, and announces the outcome
// through the outbox in the same commit. Unknown references fail with
// xerrors.ErrUnknownTransaction; callbacks never create transactions.
func (r *Reconciler) HandleCallback(ctx context.Context, payload []byte, signature string) error {
	cb, err := r.gateway.VerifyCallback(payload, signature)
	if err != nil {
		r.log.Warn("gateway callback rejected", zap.Error(err))
		return err
	}

	txn, err := r.store.GetByGatewayReference(ctx, cb.Reference)
	if err != nil {
		r.log.Warn("callback for unknown transaction",
			zap.String("gateway_reference", cb.Reference),
			zap.Error(err))
		return err
	}

	if txn.Status != StatusPending {
		r.log.Info("callback for settled transaction ignored",
			zap.Stringer("payment_transaction_id", txn.ID),
			zap.String("status", string(txn.Status)))
		return nil
	}

	uow, err := r.outboxStore.Begin(ctx)
	if err != nil {
		return err
	}

	var evt events.Event
	if cb.Succeeded {
		if err := r.store.UpdateStatus(ctx, uow, txn.ID, StatusSucceeded, ""); err != nil {
			_ = uow.Rollback(ctx)
			return r.settleRaceLost(txn, cb, err)
		}
		evt = &events.PaymentSucceeded{
			Base:                 events.NewBase(events.TypePaymentSucceeded, r.serviceName, uuid.Nil),
			PaymentTransactionID: txn.ID,
			GatewayReference:     cb.Reference,
			Amount:               txn.Amount,
			Currency:             txn.Currency,
		}
	} else {
		if err := r.store.UpdateStatus(ctx, uow, txn.ID, StatusFailed, cb.Reason); err != nil {
			_ = uow.Rollback(ctx)
			return r.settleRaceLost(txn, cb, err)
		}
		evt = &events.PaymentFailed{
			Base:                 events.NewBase(events.TypePaymentFailed, r.serviceName, uuid.Nil),
			PaymentTransactionID: txn.ID,
			GatewayReference:     cb.Reference,
			Reason:               cb.Reason,
		}
	}

	if err := uow.AddOutboxEvent(evt); err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	if err := uow.SaveChangesWithOutbox(ctx); err != nil {
		return r.settleRaceLost(txn, cb, err)
	}

	r.log.Info("payment reconciled",
		zap.Stringer("payment_transaction_id", txn.ID),
		zap.String("gateway_reference", cb.Reference),
		zap.Bool("succeeded", cb.Succeeded))
	return nil
}

// settleRaceLost downgrades errAlreadySettled to a no-op: a concurrent
// redelivery won the transition, which is the idempotent outcome. Anything
// else propagates.
func (r *Reconciler) settleRaceLost(txn *Transaction, cb CallbackResult, err error) error {
	if !errors.Is(err, errAlreadySettled) {
		return err
	}
	r.log.Info("callback lost settle race, ignored",
		zap.Stringer("payment_transaction_id", txn.ID),
		zap.String("gateway_reference", cb.Reference))
	return nil
}
