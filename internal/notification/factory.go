package notification

import (
	"fmt"
	"time"

	"healink-eventcore/pkg/xerrors"
)

// Factory resolves a concrete sender capability for a channel discriminator.
type Factory struct {
	senders map[Channel]Sender
}

// FactoryConfig wires concrete provider transports into the factory.
type FactoryConfig struct {
	Email ProviderClient
	SMS   ProviderClient
	Push  ProviderClient

	MulticastConcurrency int
	SendTimeout          time.Duration
}

func NewFactory(cfg FactoryConfig) *Factory {
	senders := make(map[Channel]Sender)
	if cfg.Email != nil {
		senders[ChannelEmail] = newChannelSender(ChannelEmail, providerTransport{cfg.Email}, cfg.MulticastConcurrency, cfg.SendTimeout)
	}
	if cfg.SMS != nil {
		senders[ChannelSMS] = newChannelSender(ChannelSMS, providerTransport{cfg.SMS}, cfg.MulticastConcurrency, cfg.SendTimeout)
	}
	if cfg.Push != nil {
		senders[ChannelPush] = newChannelSender(ChannelPush, providerTransport{cfg.Push}, cfg.MulticastConcurrency, cfg.SendTimeout)
	}
	return &Factory{senders: senders}
}

// GetSender resolves the sender for channel, failing with
// xerrors.ErrUnsupportedChannel when none is registered.
func (f *Factory) GetSender(channel Channel) (Sender, error) {
	sender, ok := f.senders[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrUnsupportedChannel, channel)
	}
	return sender, nil
}
