package transport

import (
	"context"
	"sync"
)

// MemoryBus is an in-process topic bus. Every publish is delivered on its
// own goroutine, so subscribers observe unordered delivery the way they
// would across a real broker.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]memorySub
}

type memorySub struct {
	owner   *MemoryBroker
	handler func([]byte)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]memorySub)}
}

// DefaultBus backs the "memory" broker kind.
var DefaultBus = NewMemoryBus()

const BrokerMemory = "memory"

func (bus *MemoryBus) subscribe(topic string, owner *MemoryBroker, handler func([]byte)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs[topic] = append(bus.subs[topic], memorySub{owner: owner, handler: handler})
}

func (bus *MemoryBus) drop(owner *MemoryBroker) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for topic, subs := range bus.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.owner != owner {
				kept = append(kept, s)
			}
		}
		bus.subs[topic] = kept
	}
}

func (bus *MemoryBus) publish(topic string, payload []byte) {
	bus.mu.RLock()
	subs := append([]memorySub(nil), bus.subs[topic]...)
	bus.mu.RUnlock()

	for _, s := range subs {
		s := s
		body := append([]byte(nil), payload...)
		go func() {
			if s.owner.connected() {
				s.handler(body)
			}
		}()
	}
}

// MemoryBroker is one client connection to a MemoryBus.
type MemoryBroker struct {
	bus *MemoryBus

	mu   sync.Mutex
	open bool
}

func NewMemoryBroker(bus *MemoryBus) *MemoryBroker {
	if bus == nil {
		bus = DefaultBus
	}
	return &MemoryBroker{bus: bus}
}

func (b *MemoryBroker) Name() string { return "MEMORY" }

func (b *MemoryBroker) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.open = true
	b.mu.Unlock()
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, topic string, _ byte, handler func([]byte)) error {
	if !b.connected() {
		return ErrClosed
	}
	b.bus.subscribe(topic, b, handler)
	return nil
}

func (b *MemoryBroker) Publish(topic string, _ byte, payload []byte, done func(error)) {
	if !b.connected() {
		if done != nil {
			done(ErrClosed)
		}
		return
	}
	b.bus.publish(topic, payload)
	if done != nil {
		done(nil)
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.open = false
	b.mu.Unlock()
	b.bus.drop(b)
	return nil
}

func (b *MemoryBroker) connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
