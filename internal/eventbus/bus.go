// Package eventbus abstracts the broker the outbox relay publishes onto and
// downstream services subscribe to. Delivery is at-least-once; subscribers
// must deduplicate by event identifier.
package eventbus

import "context"

// Handler processes one raw message from a topic. Returning an error is a
// signal for logging only; the bus does not redeliver.
type Handler func(ctx context.Context, topic string, payload []byte) error

type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler Handler) error
	Close() error
}
