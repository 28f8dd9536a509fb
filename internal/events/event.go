package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable, versioned fact describing something that happened in
// one service. Instances are value objects; once constructed they are safe to
// hand across goroutine and process boundaries.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	Source() string
	OccurredAtUTC() time.Time
	CorrelationID() uuid.UUID
}

// Base carries the fields every integration event shares. Concrete events
// embed it and add payload fields only.
type Base struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"event_type"`
	SourceService string    `json:"source_service"`
	OccurredAt    time.Time `json:"occurred_at"`
	Correlation   uuid.UUID `json:"correlation_id"`
}

// NewBase stamps a fresh event identity. The correlation id propagates across
// service boundaries for tracing; pass uuid.Nil to start a new trace.
func NewBase(eventType, sourceService string, correlation uuid.UUID) Base {
	if correlation == uuid.Nil {
		correlation = uuid.New()
	}
	return Base{
		ID:            uuid.New(),
		Type:          eventType,
		SourceService: sourceService,
		OccurredAt:    time.Now().UTC(),
		Correlation:   correlation,
	}
}

func (b Base) EventID() uuid.UUID       { return b.ID }
func (b Base) EventType() string        { return b.Type }
func (b Base) Source() string           { return b.SourceService }
func (b Base) OccurredAtUTC() time.Time { return b.OccurredAt.UTC() }
func (b Base) CorrelationID() uuid.UUID { return b.Correlation }
