package transport

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type MQTTBroker struct {
	opts     PubSubOptions
	clientID string

	mu     sync.Mutex
	client mqtt.Client
}

func NewMQTTBroker(opts PubSubOptions) *MQTTBroker {
	return &MQTTBroker{
		opts:     opts,
		clientID: opts.ClientIDPrefix + uuid.NewString()[:8],
	}
}

func (b *MQTTBroker) Name() string { return "MQTT" }

func (b *MQTTBroker) Connect(ctx context.Context) error {
	o := mqtt.NewClientOptions().
		AddBroker(b.opts.URL).
		SetClientID(b.clientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetOrderMatters(false)
	if deadline, ok := ctx.Deadline(); ok {
		o.SetConnectTimeout(time.Until(deadline))
	}
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).WithField("client_id", b.clientID).Warn("mqtt connection lost")
	})

	client := mqtt.NewClient(o)
	token := client.Connect()
	if err := waitToken(ctx, token); err != nil {
		return errors.Wrapf(err, "connecting to %s", b.opts.URL)
	}

	b.mu.Lock()
	b.client = client
	b.mu.Unlock()
	log.WithField("client_id", b.clientID).Debugf("connected to %s", b.opts.URL)
	return nil
}

func (b *MQTTBroker) Subscribe(ctx context.Context, topic string, qos byte, handler func([]byte)) error {
	client := b.get()
	if client == nil {
		return ErrClosed
	}
	token := client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Payload())
	})
	return errors.Wrapf(waitToken(ctx, token), "subscribing to %s", topic)
}

func (b *MQTTBroker) Publish(topic string, qos byte, payload []byte, done func(error)) {
	client := b.get()
	if client == nil {
		if done != nil {
			done(ErrClosed)
		}
		return
	}
	token := client.Publish(topic, qos, false, payload)
	if done == nil {
		return
	}
	go func() {
		<-token.Done()
		done(token.Error())
	}()
}

func (b *MQTTBroker) Close() error {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.mu.Unlock()
	if client != nil {
		client.Disconnect(250)
	}
	return nil
}

func (b *MQTTBroker) get() mqtt.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
