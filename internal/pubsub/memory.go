package pubsub

import (
	"context"
	"sync"
)

// MemoryBroadcaster fans out in-process. It serves single-instance
// deployments and tests; subscribers on other processes see nothing.
type MemoryBroadcaster struct {
	mu      sync.RWMutex
	topics  map[string]map[*memorySubscription]struct{}
	closed  bool
	buffer  int
	onEvict EvictFunc
}

// NewMemoryBroadcaster creates an empty in-process broadcaster
func NewMemoryBroadcaster(buffer int, onEvict EvictFunc) *MemoryBroadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryBroadcaster{
		topics:  make(map[string]map[*memorySubscription]struct{}),
		buffer:  buffer,
		onEvict: onEvict,
	}
}

func (b *MemoryBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := append([]byte(nil), payload...)
	var evicted []*memorySubscription

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	for sub := range b.topics[topic] {
		select {
		case sub.ch <- data:
		default:
			evicted = append(evicted, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range evicted {
		if b.onEvict != nil {
			b.onEvict(topic)
		}
		_ = sub.Close()
	}
	return nil
}

func (b *MemoryBroadcaster) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &memorySubscription{
		owner: b,
		topic: topic,
		ch:    make(chan []byte, b.buffer),
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*memorySubscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}

	return sub, nil
}

func (b *MemoryBroadcaster) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	return nil
}

// Subscribers returns the number of live subscriptions on topic
func (b *MemoryBroadcaster) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.topics[topic])
}

// Close ends every subscription and rejects further calls
func (b *MemoryBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.topics {
		for sub := range subs {
			close(sub.ch)
		}
	}
	b.topics = nil
	return nil
}

func (b *MemoryBroadcaster) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}
}

type memorySubscription struct {
	owner *MemoryBroadcaster
	topic string
	ch    chan []byte
	once  sync.Once
}

func (s *memorySubscription) Messages() <-chan []byte {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.owner.remove(s)
	})
	return nil
}
