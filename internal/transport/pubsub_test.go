package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echobench/internal/echo"
	"echobench/internal/message"
	"echobench/internal/transport"
)

func collect(t *testing.T, events <-chan transport.Event, n int) []transport.Event {
	t.Helper()
	var out []transport.Event
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case ev := <-events:
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func startResponder(t *testing.T, bus *transport.MemoryBus, b echo.Behavior) {
	t.Helper()
	r := echo.NewResponder(transport.NewMemoryBroker(bus), echo.ResponderConfig{Behavior: b})
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Close() })
}

func newPubSub(bus *transport.MemoryBus) *transport.PubSubAdapter {
	return transport.NewPubSubAdapter(transport.DefaultOptions().PubSub, transport.NewMemoryBroker(bus))
}

func TestPubSubAdapterEcho(t *testing.T) {
	bus := transport.NewMemoryBus()
	startResponder(t, bus, echo.Behavior{})

	a := newPubSub(bus)
	events := make(chan transport.Event, 16)
	a.OnResponse(events)
	require.NoError(t, a.Connect(context.Background()))
	defer a.Close()

	for i := uint64(0); i < 5; i++ {
		a.Send(message.Request{ID: i, SentAt: time.Now(), Data: message.Generate(10)})
	}

	seen := map[uint64]bool{}
	for _, ev := range collect(t, events, 5) {
		require.NoError(t, ev.Err)
		assert.False(t, ev.HasID)
		env, err := message.Decode(ev.Body)
		require.NoError(t, err)
		assert.Len(t, env.Data, 10)
		seen[env.ID] = true
	}
	assert.Len(t, seen, 5)
}

func TestPubSubAdapterDeliversUnrelatedMessages(t *testing.T) {
	bus := transport.NewMemoryBus()
	a := newPubSub(bus)
	events := make(chan transport.Event, 1)
	a.OnResponse(events)
	require.NoError(t, a.Connect(context.Background()))
	defer a.Close()

	other := transport.NewMemoryBroker(bus)
	require.NoError(t, other.Connect(context.Background()))
	other.Publish(transport.DefaultResponseTopic, 0, []byte("stray"), nil)

	ev := collect(t, events, 1)[0]
	assert.Equal(t, []byte("stray"), ev.Body)
}

type rejectingBroker struct {
	*transport.MemoryBroker
}

func (b rejectingBroker) Publish(_ string, _ byte, _ []byte, done func(error)) {
	done(errors.New("rejected"))
}

func TestPubSubAdapterSendError(t *testing.T) {
	a := transport.NewPubSubAdapter(transport.DefaultOptions().PubSub,
		rejectingBroker{transport.NewMemoryBroker(transport.NewMemoryBus())})
	events := make(chan transport.Event, 1)
	a.OnResponse(events)
	require.NoError(t, a.Connect(context.Background()))
	defer a.Close()

	a.Send(message.Request{ID: 42, SentAt: time.Now()})

	ev := collect(t, events, 1)[0]
	assert.True(t, ev.HasID)
	assert.Equal(t, uint64(42), ev.ID)
	assert.ErrorContains(t, ev.Err, "rejected")
}

type unreachableBroker struct {
	*transport.MemoryBroker
}

func (unreachableBroker) Connect(context.Context) error { return errors.New("connection refused") }

func TestPubSubAdapterConnectError(t *testing.T) {
	a := transport.NewPubSubAdapter(transport.DefaultOptions().PubSub,
		unreachableBroker{transport.NewMemoryBroker(nil)})
	a.OnResponse(make(chan transport.Event))
	assert.ErrorContains(t, a.Connect(context.Background()), "connection refused")
}

func TestPubSubAdapterCloseIsIdempotent(t *testing.T) {
	bus := transport.NewMemoryBus()
	startResponder(t, bus, echo.Behavior{})

	a := newPubSub(bus)
	events := make(chan transport.Event, 4)
	a.OnResponse(events)
	require.NoError(t, a.Connect(context.Background()))

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	a.Send(message.Request{ID: 1, SentAt: time.Now()})
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after close: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	assert.ErrorIs(t, a.Connect(context.Background()), transport.ErrClosed)
}

func TestNewBroker(t *testing.T) {
	opts := transport.DefaultOptions().PubSub
	for kind, name := range map[string]string{
		transport.BrokerMQTT:   "MQTT",
		transport.BrokerNATS:   "NATS",
		transport.BrokerMemory: "MEMORY",
	} {
		opts.Broker = kind
		b, err := transport.NewBroker(opts)
		require.NoError(t, err)
		assert.Equal(t, name, b.Name())
	}

	opts.Broker = "kafka"
	_, err := transport.NewBroker(opts)
	assert.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	opts := transport.DefaultOptions()
	require.NoError(t, opts.Validate())

	bad := opts
	bad.PubSub.QoS = 3
	assert.Error(t, bad.Validate())

	bad = opts
	bad.PubSub.Broker = "pigeon"
	assert.Error(t, bad.Validate())

	bad = opts
	bad.RequestReply.URL = ""
	assert.Error(t, bad.Validate())
}
