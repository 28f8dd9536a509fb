package xerrors

import "errors"

// Failure taxonomy for the event delivery core. Callers classify with errors.Is.
var (
	// ErrSerialization means an event payload could not be encoded. Fatal to
	// that event; never retried blindly.
	ErrSerialization = errors.New("event serialization failed")

	// ErrPersistence means a unit-of-work commit failed. The whole operation
	// rolled back; the caller retries the business operation as a unit.
	ErrPersistence = errors.New("persistence failed")

	// ErrTransport means the bus, gateway or provider was unreachable or
	// rejected the call. Retryable up to a ceiling.
	ErrTransport = errors.New("transport failed")

	// ErrUnknownEventType means a stored event names a type no registry knows.
	// Non-retryable; requires operator attention.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrUnsupportedChannel means no sender is registered for a channel.
	ErrUnsupportedChannel = errors.New("unsupported notification channel")

	// ErrUnknownTransaction means a gateway callback referenced a payment
	// transaction that does not exist. Callbacks never create state.
	ErrUnknownTransaction = errors.New("unknown payment transaction")
)
