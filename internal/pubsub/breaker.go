package pubsub

import (
	"context"

	"chat-relay/backend/pkg/resilience"
)

type guardedBroadcaster struct {
	Broadcaster
	cb *resilience.CircuitBreaker
}

// WithCircuitBreaker fails publishes fast while the channel keeps failing.
// Subscribe and HealthCheck are not guarded: health must always probe for real.
func WithCircuitBreaker(b Broadcaster, cb *resilience.CircuitBreaker) Broadcaster {
	if cb == nil {
		return b
	}
	return &guardedBroadcaster{Broadcaster: b, cb: cb}
}

func (g *guardedBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	return g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.Broadcaster.Publish(ctx, topic, payload)
	})
}
