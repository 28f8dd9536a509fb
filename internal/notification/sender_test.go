package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healink-eventcore/pkg/xerrors"
)

// fakeProvider records every delivery and can fail or block per address.
type fakeProvider struct {
	mu       sync.Mutex
	sent     []string
	subjects map[string]string
	failFor  map[string]error

	active  int
	maxSeen int
	hold    time.Duration
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subjects: make(map[string]string), failFor: make(map[string]error)}
}

func (p *fakeProvider) Send(ctx context.Context, address, subject, content string) (string, error) {
	p.mu.Lock()
	p.active++
	if p.active > p.maxSeen {
		p.maxSeen = p.active
	}
	hold := p.hold
	p.mu.Unlock()

	if hold > 0 {
		time.Sleep(hold)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
	if err := p.failFor[address]; err != nil {
		return "", err
	}
	p.sent = append(p.sent, address)
	p.subjects[address] = subject
	return fmt.Sprintf("msg-%d", len(p.sent)), nil
}

func (p *fakeProvider) delivered() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

func emailFactory(p ProviderClient) *Factory {
	return NewFactory(FactoryConfig{Email: p, MulticastConcurrency: 4, SendTimeout: time.Second})
}

func TestGetSenderUnsupportedChannel(t *testing.T) {
	factory := emailFactory(newFakeProvider())

	_, err := factory.GetSender(Channel("fax"))
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnsupportedChannel)

	_, err = factory.GetSender(ChannelSMS)
	assert.ErrorIs(t, err, xerrors.ErrUnsupportedChannel)

	sender, err := factory.GetSender(ChannelEmail)
	require.NoError(t, err)
	assert.NotNil(t, sender)
}

func TestSendMulticastPreservesOrderAndContainsFailures(t *testing.T) {
	provider := newFakeProvider()
	provider.failFor["b@example.com"] = errors.New("mailbox full")
	sender, err := emailFactory(provider).GetSender(ChannelEmail)
	require.NoError(t, err)

	rcpts := []Recipient{
		{Address: "a@example.com", Channel: ChannelEmail},
		{Address: "b@example.com", Channel: ChannelEmail},
		{Address: "c@example.com", Channel: ChannelEmail},
	}
	results := sender.SendMulticast(context.Background(), Request{Subject: "hi", Body: "test"}, rcpts)

	require.Len(t, results, 3)
	for i, rcpt := range rcpts {
		assert.Equal(t, rcpt.Address, results[i].Recipient)
	}
	assert.True(t, results[0].Success)
	assert.NotEmpty(t, results[0].ProviderMessageID)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "mailbox full")
	assert.True(t, results[2].Success)

	// The failing recipient never blocks its siblings.
	assert.ElementsMatch(t, []string{"a@example.com", "c@example.com"}, provider.delivered())
}

func TestSendMulticastBoundsConcurrency(t *testing.T) {
	provider := newFakeProvider()
	provider.hold = 20 * time.Millisecond
	factory := NewFactory(FactoryConfig{Email: provider, MulticastConcurrency: 2, SendTimeout: time.Second})
	sender, err := factory.GetSender(ChannelEmail)
	require.NoError(t, err)

	rcpts := make([]Recipient, 8)
	for i := range rcpts {
		rcpts[i] = Recipient{Address: fmt.Sprintf("user%d@example.com", i), Channel: ChannelEmail}
	}
	results := sender.SendMulticast(context.Background(), Request{Subject: "hi"}, rcpts)

	require.Len(t, results, 8)
	for _, res := range results {
		assert.True(t, res.Success)
	}
	assert.LessOrEqual(t, provider.maxSeen, 2)
}

// blockingProvider holds its first call open until released and ignores
// context, standing in for a provider mid-call during shutdown.
type blockingProvider struct {
	started chan string
	release chan struct{}
	once    sync.Once
}

func (p *blockingProvider) Send(ctx context.Context, address, subject, content string) (string, error) {
	var first bool
	p.once.Do(func() { first = true })
	if first {
		p.started <- address
		<-p.release
		return "msg-1", nil
	}
	return "msg-n", nil
}

func TestSendMulticastCancellationKeepsCompletedResults(t *testing.T) {
	provider := &blockingProvider{started: make(chan string, 1), release: make(chan struct{})}
	factory := NewFactory(FactoryConfig{Email: provider, MulticastConcurrency: 1, SendTimeout: time.Minute})
	sender, err := factory.GetSender(ChannelEmail)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rcpts := []Recipient{
		{Address: "a@example.com", Channel: ChannelEmail},
		{Address: "b@example.com", Channel: ChannelEmail},
		{Address: "c@example.com", Channel: ChannelEmail},
	}

	var results []SendResult
	done := make(chan struct{})
	go func() {
		results = sender.SendMulticast(ctx, Request{Subject: "hi"}, rcpts)
		close(done)
	}()

	inFlight := <-provider.started
	cancel()
	close(provider.release)
	<-done

	require.Len(t, results, 3)
	var succeeded, canceled int
	for _, res := range results {
		if res.Success {
			succeeded++
			assert.Equal(t, inFlight, res.Recipient)
			continue
		}
		canceled++
		assert.Contains(t, res.Error, context.Canceled.Error())
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, canceled)
}
