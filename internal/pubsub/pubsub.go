// Package pubsub is the broadcast channel: publish a payload to a topic and
// fan it out to every live subscriber of that topic.
package pubsub

import (
	"context"
	"errors"
)

// ErrClosed is returned by a broadcaster that has been shut down
var ErrClosed = errors.New("broadcaster closed")

// DefaultBuffer is the per-subscription payload buffer
const DefaultBuffer = 256

// Broadcaster publishes payloads and hands out per-caller subscriptions.
// Implementations are safe for concurrent use.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	// HealthCheck is a side-effect free round trip to the provider
	HealthCheck(ctx context.Context) error
}

// Subscription is a live stream of payloads for one topic.
//
// Messages is closed when the subscription ends: after Close, after the
// consumer fell more than the buffer size behind, or when the provider
// connection is gone. Close is idempotent.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// EvictFunc is invoked when a subscription is ended because its consumer fell behind
type EvictFunc func(topic string)
