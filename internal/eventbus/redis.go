package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"healink-eventcore/pkg/xerrors"
)

// RedisBus implements Bus over Redis Pub/Sub. One subscription goroutine per
// topic; handlers run on that goroutine in arrival order.
type RedisBus struct {
	client *redis.Client

	mu      sync.Mutex
	pubsubs []*redis.PubSub
	cancel  context.CancelFunc
	ctx     context.Context
}

func NewRedisBus(client *redis.Client) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBus{client: client, ctx: ctx, cancel: cancel}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("%w: redis publish %s: %v", xerrors.ErrTransport, topic, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(topic string, handler Handler) error {
	pubsub := b.client.Subscribe(b.ctx, topic)
	if _, err := pubsub.Receive(b.ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("%w: redis subscribe %s: %v", xerrors.ErrTransport, topic, err)
	}

	b.mu.Lock()
	b.pubsubs = append(b.pubsubs, pubsub)
	b.mu.Unlock()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_ = handler(b.ctx, msg.Channel, []byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	b.cancel()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ps := range b.pubsubs {
		_ = ps.Close()
	}
	b.pubsubs = nil
	return nil
}
