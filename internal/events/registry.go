package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"healink-eventcore/pkg/xerrors"
)

// Registry resolves stored event type names back to concrete event values.
// Dispatch is by name so new event versions register a new name instead of
// changing an old payload shape.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() Event
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() Event)}
}

func (r *Registry) Register(eventType string, factory func() Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[eventType] = factory
}

// Decode unmarshals payload into the concrete event registered for eventType.
func (r *Registry) Decode(eventType string, payload []byte) (Event, error) {
	r.mu.RLock()
	factory, ok := r.factories[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrUnknownEventType, eventType)
	}

	evt := factory()
	if err := json.Unmarshal(payload, evt); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", xerrors.ErrSerialization, eventType, err)
	}
	return evt, nil
}

// DefaultRegistry returns a registry preloaded with the full event catalog.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeUserRegistered, func() Event { return &UserRegistered{} })
	r.Register(TypeResetPasswordOtp, func() Event { return &ResetPasswordOtp{} })
	r.Register(TypeNotificationRequested, func() Event { return &NotificationRequested{} })
	r.Register(TypePaymentIntentRequested, func() Event { return &PaymentIntentRequested{} })
	r.Register(TypePaymentIntentCreated, func() Event { return &PaymentIntentCreated{} })
	r.Register(TypePaymentSucceeded, func() Event { return &PaymentSucceeded{} })
	r.Register(TypePaymentFailed, func() Event { return &PaymentFailed{} })
	return r
}
