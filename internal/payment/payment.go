// Package payment creates gateway payment intents and reconciles asynchronous
// gateway callbacks against internally owned transactions.
package payment

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a payment transaction. Callbacks only
// transition existing state; they never create transactions.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// errAlreadySettled reports a guarded transition that found the transaction
// already out of Pending. Concurrent callback redeliveries race to settle; the
// loser gets this and treats it as a no-op.
var errAlreadySettled = errors.New("payment transaction already settled")

// Transaction is the internally owned payment record. ID is generated and
// durably stored before any gateway call, so a callback that carries only
// gateway-side identifiers always joins back to exactly one transaction
// through GatewayReference.
type Transaction struct {
	ID               uuid.UUID
	ReferenceID      uuid.UUID
	Amount           int64
	Currency         string
	Status           Status
	GatewayName      string
	GatewayReference string
	GatewayResponse  []byte
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IntentResult binds the internal transaction identifier to the opaque,
// gateway-specific response handed back to the initiating service.
type IntentResult struct {
	PaymentTransactionID uuid.UUID       `json:"payment_transaction_id"`
	GatewayResponse      json.RawMessage `json:"gateway_response"`
}
