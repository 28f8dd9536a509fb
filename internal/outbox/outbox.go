// Package outbox implements the transactional outbox pattern: integration
// events are written in the same database transaction as the business state
// change they describe, then relayed to the event bus by a background worker.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status is the processing state of an outbox row. Rows move
// Pending -> Processing -> {Processed | Failed}; Failed with retries left
// returns to Pending at next_retry_at. Only the relay transitions rows out
// of Pending.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
	StatusFailed     Status = "FAILED"
)

// Event is one durable outbox row. Its ID matches the integration event id it
// serializes, so consumers can deduplicate across redeliveries. Rows are never
// deleted here; archival is an operational concern.
type Event struct {
	ID          uuid.UUID
	EventType   string
	Payload     []byte
	Status      Status
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	// UpdatedAt stamps the last status transition; the claim lease is
	// measured against it.
	UpdatedAt   time.Time
	ProcessedAt *time.Time
	NextRetryAt *time.Time
}
