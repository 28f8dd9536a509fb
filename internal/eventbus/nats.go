package eventbus

import (
	"context"
	"fmt"

	natspkg "github.com/nats-io/nats.go"

	"healink-eventcore/pkg/xerrors"
)

// NATSBus implements Bus over core NATS subjects.
type NATSBus struct {
	nc   *natspkg.Conn
	subs []*natspkg.Subscription
}

func NewNATSBus(url string) (*NATSBus, error) {
	nc, err := natspkg.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("%w: nats connect: %v", xerrors.ErrTransport, err)
	}
	return &NATSBus{nc: nc}, nil
}

func (b *NATSBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: nats publish %s: %v", xerrors.ErrTransport, topic, err)
	}
	if err := b.nc.Publish(topic, payload); err != nil {
		return fmt.Errorf("%w: nats publish %s: %v", xerrors.ErrTransport, topic, err)
	}
	return nil
}

func (b *NATSBus) Subscribe(topic string, handler Handler) error {
	sub, err := b.nc.Subscribe(topic, func(msg *natspkg.Msg) {
		_ = handler(context.Background(), msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("%w: nats subscribe %s: %v", xerrors.ErrTransport, topic, err)
	}
	b.subs = append(b.subs, sub)
	return nil
}

func (b *NATSBus) Close() error {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.nc.Close()
	return nil
}
