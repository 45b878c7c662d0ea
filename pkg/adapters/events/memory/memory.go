package memory

import (
	"context"
	"sync"

	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// InMemoryEventBus implements ports.EventBus using in-memory handlers.
// Delivery is synchronous, which makes ordering assertions in tests
// deterministic. This is for testing purposes only.
type InMemoryEventBus struct {
	subscribers map[string]map[int]ports.EventHandler
	nextID      int
	mu          sync.RWMutex
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string]map[int]ports.EventHandler),
	}
}

// Publish delivers an event to all subscribers of a topic (ports.EventBus interface).
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	handlers := make([]ports.EventHandler, 0, len(e.subscribers[topic]))
	for _, h := range e.subscribers[topic] {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, handler := range handlers {
		// Handler errors do not stop delivery to other subscribers.
		_ = handler(ctx, event)
	}

	return nil
}

// Subscribe registers a handler for a topic (ports.EventBus interface).
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) (ports.Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[int]ports.EventHandler)
	}
	id := e.nextID
	e.nextID++
	e.subscribers[topic][id] = handler

	return &memorySubscription{bus: e, topic: topic, id: id}, nil
}

// Close removes all subscribers (ports.EventBus interface).
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subscribers = make(map[string]map[int]ports.EventHandler)
	return nil
}

// SubscriberCount returns the number of handlers on a topic, for tests.
func (e *InMemoryEventBus) SubscriberCount(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.subscribers[topic])
}

type memorySubscription struct {
	bus   *InMemoryEventBus
	topic string
	id    int
	once  sync.Once
}

// Unsubscribe removes the handler from the topic (ports.Subscription interface).
func (s *memorySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		delete(s.bus.subscribers[s.topic], s.id)
		if len(s.bus.subscribers[s.topic]) == 0 {
			delete(s.bus.subscribers, s.topic)
		}
	})
	return nil
}
