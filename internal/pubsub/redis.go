package pubsub

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// RedisBroadcaster fans out through Redis Pub/Sub. Every subscription holds
// its own connection; publishes and pings share the client's pool.
type RedisBroadcaster struct {
	rdb     *goredis.Client
	buffer  int
	onEvict EvictFunc
}

// NewRedisBroadcaster wraps a shared go-redis client
func NewRedisBroadcaster(rdb *goredis.Client, buffer int, onEvict EvictFunc) *RedisBroadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &RedisBroadcaster{rdb: rdb, buffer: buffer, onEvict: onEvict}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", topic, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription
func (b *RedisBroadcaster) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, topic)

	// go-redis subscribes lazily; wait for the confirmation so a dead
	// server surfaces here and not as a silent, empty stream.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", topic, err)
	}

	sub := &redisSubscription{
		topic: topic,
		ps:    ps,
		ch:    make(chan []byte, b.buffer),
		done:  make(chan struct{}),
	}
	go sub.forward(ps.Channel(), b.onEvict)

	return sub, nil
}

func (b *RedisBroadcaster) HealthCheck(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

type redisSubscription struct {
	topic string
	ps    *goredis.PubSub
	ch    chan []byte
	done  chan struct{}
	once  sync.Once
	err   error
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.ch
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}

// forward is the only writer to s.ch and closes it on exit
func (s *redisSubscription) forward(in <-chan *goredis.Message, onEvict EvictFunc) {
	defer close(s.ch)

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.ch <- []byte(msg.Payload):
			default:
				if onEvict != nil {
					onEvict(s.topic)
				}
				_ = s.Close()
				return
			}
		}
	}
}
