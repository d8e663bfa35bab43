package transport

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"echobench/internal/message"
)

// ErrClosed is reported for sends attempted on a closed channel.
var ErrClosed = errors.New("transport closed")

// Adapter abstracts one request/response transport. OnResponse is called once
// before Connect; every response (or per-request transport failure) is then
// delivered to the sink as one Event, in arrival order.
type Adapter interface {
	Name() string
	OnResponse(sink chan<- Event)
	Connect(ctx context.Context) error
	Send(req message.Request)
	Close() error
}

// Event is a single transport observation handed to the recorder.
//
// HasID is set when the transport itself knows which request the event
// belongs to: request/reply exchanges and send failures. Pub/sub responses
// carry their id only inside Body.
type Event struct {
	ID       uint64
	HasID    bool
	Received time.Time
	Body     []byte
	Err      error
}

// Options holds the per-transport settings of a benchmark.
type Options struct {
	PubSub       PubSubOptions       `mapstructure:"pubsub" json:"pubsub"`
	RequestReply RequestReplyOptions `mapstructure:"reqreply" json:"reqreply"`
}

type PubSubOptions struct {
	Broker         string `mapstructure:"broker" json:"broker"` // mqtt, nats or memory
	URL            string `mapstructure:"url" json:"url"`
	RequestTopic   string `mapstructure:"request_topic" json:"request_topic"`
	ResponseTopic  string `mapstructure:"response_topic" json:"response_topic"`
	QoS            byte   `mapstructure:"qos" json:"qos"`
	ClientIDPrefix string `mapstructure:"client_id_prefix" json:"client_id_prefix"`

	// Bus is the bus of the memory broker. Nil means DefaultBus.
	Bus *MemoryBus `mapstructure:"-" json:"-"`
}

type RequestReplyOptions struct {
	URL          string `mapstructure:"url" json:"url"`
	Path         string `mapstructure:"path" json:"path"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" json:"max_idle_conns"`
}

const (
	BrokerMQTT = "mqtt"
	BrokerNATS = "nats"

	DefaultRequestTopic  = "benchmark/request"
	DefaultResponseTopic = "benchmark/response"
)

func DefaultOptions() Options {
	return Options{
		PubSub: PubSubOptions{
			Broker:         BrokerMQTT,
			URL:            "ws://localhost:8083",
			RequestTopic:   DefaultRequestTopic,
			ResponseTopic:  DefaultResponseTopic,
			QoS:            1,
			ClientIDPrefix: "benchmark_",
		},
		RequestReply: RequestReplyOptions{
			URL:          "http://localhost:3000",
			Path:         "/benchmark",
			MaxIdleConns: 2000,
		},
	}
}

func (o Options) Validate() error {
	switch o.PubSub.Broker {
	case BrokerMQTT, BrokerNATS, BrokerMemory:
	default:
		return errors.Errorf("unknown broker %q", o.PubSub.Broker)
	}
	if o.PubSub.QoS > 2 {
		return errors.Errorf("qos must be 0, 1 or 2, got %d", o.PubSub.QoS)
	}
	if o.PubSub.RequestTopic == "" || o.PubSub.ResponseTopic == "" {
		return errors.New("pub/sub topics must be set")
	}
	if o.RequestReply.URL == "" {
		return errors.New("request/reply url must be set")
	}
	return nil
}

// eventSink delivers events until the owning adapter closes.
type eventSink struct {
	mu   sync.RWMutex
	sink chan<- Event
	done chan struct{}
	once sync.Once
}

func newEventSink() *eventSink {
	return &eventSink{done: make(chan struct{})}
}

func (s *eventSink) register(sink chan<- Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == nil {
		s.sink = sink
	}
}

// deliver blocks until the event is accepted or the adapter closes.
func (s *eventSink) deliver(ev Event) bool {
	s.mu.RLock()
	sink := s.sink
	s.mu.RUnlock()
	if sink == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case sink <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *eventSink) close() bool {
	closed := false
	s.once.Do(func() {
		close(s.done)
		closed = true
	})
	return closed
}

func (s *eventSink) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
