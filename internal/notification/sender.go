package notification

import (
	"context"
	"sync"
	"time"
)

// transport is the single-shot provider call behind a channel sender.
type transport interface {
	deliver(ctx context.Context, req Request, rcpt Recipient) (providerMessageID string, err error)
}

// channelSender adapts a transport into the Sender contract: per-call
// timeouts, result capture, and bounded parallel multicast.
type channelSender struct {
	channel     Channel
	transport   transport
	concurrency int
	timeout     time.Duration
}

func newChannelSender(channel Channel, t transport, concurrency int, timeout time.Duration) *channelSender {
	if concurrency <= 0 {
		concurrency = 8
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &channelSender{channel: channel, transport: t, concurrency: concurrency, timeout: timeout}
}

func (s *channelSender) Send(ctx context.Context, req Request, rcpt Recipient) SendResult {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msgID, err := s.transport.deliver(callCtx, req, rcpt)
	if err != nil {
		return SendResult{Recipient: rcpt.Address, Error: err.Error()}
	}
	return SendResult{Recipient: rcpt.Address, Success: true, ProviderMessageID: msgID}
}

func (s *channelSender) SendMulticast(ctx context.Context, req Request, rcpts []Recipient) []SendResult {
	results := make([]SendResult, len(rcpts))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, rcpt := range rcpts {
		wg.Add(1)
		go func(i int, rcpt Recipient) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = SendResult{Recipient: rcpt.Address, Error: ctx.Err().Error()}
				return
			}
			if ctx.Err() != nil {
				results[i] = SendResult{Recipient: rcpt.Address, Error: ctx.Err().Error()}
				return
			}
			results[i] = s.Send(ctx, req, rcpt)
		}(i, rcpt)
	}
	wg.Wait()
	return results
}
