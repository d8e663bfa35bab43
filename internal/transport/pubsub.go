package transport

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"echobench/internal/message"
)

// PubSubAdapter publishes requests on a request topic and correlates echoes
// from a response topic by the id embedded in the payload. The broker itself
// offers no request/response linkage.
type PubSubAdapter struct {
	opts   PubSubOptions
	broker Broker
	sink   *eventSink

	closeOnce sync.Once
	closeErr  error
}

func NewPubSubAdapter(opts PubSubOptions, broker Broker) *PubSubAdapter {
	return &PubSubAdapter{
		opts:   opts,
		broker: broker,
		sink:   newEventSink(),
	}
}

func (a *PubSubAdapter) Name() string { return a.broker.Name() }

func (a *PubSubAdapter) OnResponse(sink chan<- Event) { a.sink.register(sink) }

// Connect connects the broker and subscribes to the response topic before
// any request can be sent.
func (a *PubSubAdapter) Connect(ctx context.Context) error {
	if a.sink.closed() {
		return ErrClosed
	}
	if err := a.broker.Connect(ctx); err != nil {
		return err
	}
	err := a.broker.Subscribe(ctx, a.opts.ResponseTopic, a.opts.QoS, func(payload []byte) {
		received := time.Now()
		body := make([]byte, len(payload))
		copy(body, payload)
		a.sink.deliver(Event{Received: received, Body: body})
	})
	if err != nil {
		_ = a.broker.Close()
		return err
	}
	return nil
}

// Send never waits on the broker; failures come back as events.
func (a *PubSubAdapter) Send(req message.Request) {
	if a.sink.closed() {
		return
	}
	body, err := message.Encode(req)
	if err != nil {
		go a.fail(req.ID, err)
		return
	}
	a.broker.Publish(a.opts.RequestTopic, a.opts.QoS, body, func(err error) {
		if err != nil {
			go a.fail(req.ID, errors.Wrapf(err, "publishing to %s", a.opts.RequestTopic))
		}
	})
}

func (a *PubSubAdapter) fail(id uint64, err error) {
	a.sink.deliver(Event{ID: id, HasID: true, Received: time.Now(), Err: err})
}

func (a *PubSubAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.sink.close()
		a.closeErr = a.broker.Close()
	})
	return a.closeErr
}
