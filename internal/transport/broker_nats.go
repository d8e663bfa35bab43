package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NATSBroker binds the pub/sub adapter to core NATS. Core NATS is
// at-most-once, so the requested QoS level is accepted but has no effect.
type NATSBroker struct {
	opts PubSubOptions
	name string

	mu   sync.Mutex
	conn *nats.Conn
}

func NewNATSBroker(opts PubSubOptions) *NATSBroker {
	return &NATSBroker{
		opts: opts,
		name: opts.ClientIDPrefix + uuid.NewString()[:8],
	}
}

func (b *NATSBroker) Name() string { return "NATS" }

func (b *NATSBroker) Connect(ctx context.Context) error {
	natsOpts := []nats.Option{nats.Name(b.name), nats.NoReconnect()}
	if deadline, ok := ctx.Deadline(); ok {
		natsOpts = append(natsOpts, nats.Timeout(time.Until(deadline)))
	}
	conn, err := nats.Connect(b.opts.URL, natsOpts...)
	if err != nil {
		return errors.Wrapf(err, "connecting to %s", b.opts.URL)
	}
	if b.opts.QoS > 0 {
		log.WithField("qos", b.opts.QoS).Debug("core nats ignores the delivery-guarantee level")
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	return nil
}

func (b *NATSBroker) Subscribe(ctx context.Context, topic string, _ byte, handler func([]byte)) error {
	conn := b.get()
	if conn == nil {
		return ErrClosed
	}
	if _, err := conn.Subscribe(topic, func(m *nats.Msg) {
		handler(m.Data)
	}); err != nil {
		return errors.Wrapf(err, "subscribing to %s", topic)
	}
	// make sure the server registered the interest before anything is sent
	return errors.Wrap(conn.FlushWithContext(ctx), "flushing subscription")
}

func (b *NATSBroker) Publish(topic string, _ byte, payload []byte, done func(error)) {
	conn := b.get()
	if conn == nil {
		if done != nil {
			done(ErrClosed)
		}
		return
	}
	err := conn.Publish(topic, payload)
	if done != nil {
		done(err)
	}
}

func (b *NATSBroker) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return nil
}

func (b *NATSBroker) get() *nats.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}
