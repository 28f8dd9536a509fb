// Package notification fans logical notifications out to channel-specific
// senders with per-recipient accounting.
package notification

import "context"

// Channel discriminates the delivery transport for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Recipient identifies one notification target: an email address, phone
// number or device token, depending on the channel it applies to.
type Recipient struct {
	Address string
	Channel Channel
	Name    string
}

// Request is the channel-agnostic message content.
type Request struct {
	Subject  string
	Body     string
	Template string
	Data     map[string]string
}

// SendResult is the per-recipient outcome of one delivery attempt. Transport
// failures land here rather than in a returned error so batch callers keep
// processing siblings.
type SendResult struct {
	Recipient         string
	Success           bool
	ProviderMessageID string
	Error             string
}

// Sender delivers a notification over one channel.
type Sender interface {
	// Send delivers to exactly one recipient.
	Send(ctx context.Context, req Request, rcpt Recipient) SendResult

	// SendMulticast fans out to every recipient independently and returns one
	// result per recipient in input order. A failure for one recipient never
	// aborts sends to the others; on cancellation, results for recipients
	// already completed are kept and the rest are marked canceled.
	SendMulticast(ctx context.Context, req Request, rcpts []Recipient) []SendResult
}
