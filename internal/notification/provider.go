package notification

import (
	"context"
	"fmt"

	"healink-eventcore/pkg/xerrors"
)

// ProviderClient is the external collaborator behind one channel: an SMTP
// relay, an SMS provider's API, a push service. Implementations return the
// provider-assigned message id on success.
type ProviderClient interface {
	Send(ctx context.Context, address, subject, content string) (providerMessageID string, err error)
}

// providerTransport adapts a ProviderClient to the internal transport surface
// and classifies its failures as transport errors.
type providerTransport struct {
	client ProviderClient
}

func (t providerTransport) deliver(ctx context.Context, req Request, rcpt Recipient) (string, error) {
	subject, body := Render(req)
	msgID, err := t.client.Send(ctx, rcpt.Address, subject, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", xerrors.ErrTransport, err)
	}
	return msgID, nil
}
