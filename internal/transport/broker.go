package transport

import (
	"context"

	"github.com/pkg/errors"
)

// Broker is a minimal topic based pub/sub connection.
type Broker interface {
	Name() string
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, qos byte, handler func(payload []byte)) error
	// Publish must not block past enqueue. done, if set, is called once the
	// broker accepted or rejected the message.
	Publish(topic string, qos byte, payload []byte, done func(error))
	Close() error
}

// NewBroker builds the broker binding selected by opts.Broker.
func NewBroker(opts PubSubOptions) (Broker, error) {
	switch opts.Broker {
	case BrokerMQTT:
		return NewMQTTBroker(opts), nil
	case BrokerNATS:
		return NewNATSBroker(opts), nil
	case BrokerMemory:
		return NewMemoryBroker(opts.Bus), nil
	default:
		return nil, errors.Errorf("unknown broker %q", opts.Broker)
	}
}
