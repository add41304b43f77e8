package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Ingest results
const (
	ResultOK            = "ok"
	ResultPersistFailed = "persist_failed"
	ResultPublishFailed = "publish_failed"
)

// Frame drop reasons
const (
	ReasonDecode  = "decode"
	ReasonNonText = "non_text"
)

// Metrics holds the relay instruments. All methods are safe on a nil receiver.
type Metrics struct {
	activeConnections  metric.Int64UpDownCounter
	messagesIngested   metric.Int64Counter
	ingestDuration     metric.Float64Histogram
	framesDropped      metric.Int64Counter
	subscribersEvicted metric.Int64Counter
	healthProbes       metric.Int64Counter
}

// New registers the relay instruments on meter
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.activeConnections, err = meter.Int64UpDownCounter("relay_active_connections",
		metric.WithDescription("WebSocket connections currently relayed")); err != nil {
		return nil, fmt.Errorf("active connections instrument: %w", err)
	}
	if m.messagesIngested, err = meter.Int64Counter("relay_messages_ingested_total",
		metric.WithDescription("Messages through the ingest pipeline by result")); err != nil {
		return nil, fmt.Errorf("messages ingested instrument: %w", err)
	}
	if m.ingestDuration, err = meter.Float64Histogram("relay_ingest_duration_seconds",
		metric.WithDescription("Persist-then-publish latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.001, .005, .01, .025, .05, .1, .25, .5, 1)); err != nil {
		return nil, fmt.Errorf("ingest duration instrument: %w", err)
	}
	if m.framesDropped, err = meter.Int64Counter("relay_frames_dropped_total",
		metric.WithDescription("Inbound frames skipped by reason")); err != nil {
		return nil, fmt.Errorf("frames dropped instrument: %w", err)
	}
	if m.subscribersEvicted, err = meter.Int64Counter("relay_subscribers_evicted_total",
		metric.WithDescription("Subscriptions ended because the consumer fell behind")); err != nil {
		return nil, fmt.Errorf("subscribers evicted instrument: %w", err)
	}
	if m.healthProbes, err = meter.Int64Counter("relay_health_probes_total",
		metric.WithDescription("Health probe outcomes by component and status")); err != nil {
		return nil, fmt.Errorf("health probes instrument: %w", err)
	}

	return m, nil
}

// Noop returns instruments that record nothing
func Noop() *Metrics {
	m, _ := New(noop.NewMeterProvider().Meter("noop"))
	return m
}

func (m *Metrics) ConnectionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeConnections.Add(ctx, 1)
}

func (m *Metrics) ConnectionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeConnections.Add(ctx, -1)
}

func (m *Metrics) MessageIngested(ctx context.Context, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.messagesIngested.Add(ctx, 1, attrs)
	m.ingestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) FrameDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.framesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) SubscriberEvicted(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.subscribersEvicted.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *Metrics) HealthProbe(ctx context.Context, component, status string) {
	if m == nil {
		return
	}
	m.healthProbes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("status", status),
	))
}
