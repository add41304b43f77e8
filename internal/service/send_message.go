package service

import (
	"context"
	"encoding/json"
	"time"

	"chat-relay/backend/internal/models"
	"chat-relay/backend/internal/pubsub"
	"chat-relay/backend/internal/repository"
	"chat-relay/backend/pkg/errors"
	"chat-relay/backend/pkg/logger"
	"chat-relay/backend/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MessageService is the ingest pipeline: persist, then publish.
//
// A message is published only after it is durably stored. A publish
// failure does not roll back the stored message.
type MessageService struct {
	repo        repository.MessageRepository
	broadcaster pubsub.Broadcaster
	clock       *MonotonicClock
	topic       string
	log         *logger.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// MessageServiceOptions holds the optional collaborators of MessageService
type MessageServiceOptions struct {
	Topic   string
	Clock   *MonotonicClock
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
}

// NewMessageService creates the ingest pipeline over a store and a channel
func NewMessageService(repo repository.MessageRepository, broadcaster pubsub.Broadcaster, opts MessageServiceOptions) *MessageService {
	if opts.Topic == "" {
		opts.Topic = "messages"
	}
	if opts.Clock == nil {
		opts.Clock = NewMonotonicClock(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobal()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("chat-relay/service")
	}
	return &MessageService{
		repo:        repo,
		broadcaster: broadcaster,
		clock:       opts.Clock,
		topic:       opts.Topic,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
	}
}

// Execute stores a new message and publishes it.
//
// On a persistence error nothing is published and the returned message is nil.
// On a publish error the stored message is returned along with the error.
func (s *MessageService) Execute(ctx context.Context, content, author string) (*models.Message, error) {
	ctx, span := s.tracer.Start(ctx, "MessageService.Execute",
		trace.WithAttributes(attribute.String("relay.topic", s.topic)))
	defer span.End()

	start := time.Now()
	msg := models.NewMessage(content, author, s.clock.Now())
	span.SetAttributes(attribute.String("message.id", msg.ID.String()))

	if err := s.repo.Save(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.metrics.MessageIngested(ctx, metrics.ResultPersistFailed, time.Since(start))
		s.log.LogError(err, "Failed to persist message", "message_id", msg.ID.String())
		return nil, errors.Persistence("save message", err)
	}

	payload, err := json.Marshal(msg)
	if err == nil {
		err = s.broadcaster.Publish(ctx, s.topic, payload)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		s.metrics.MessageIngested(ctx, metrics.ResultPublishFailed, time.Since(start))
		s.log.LogError(err, "Stored message was not published",
			"message_id", msg.ID.String(),
			"topic", s.topic,
		)
		return msg, errors.Publish("publish message", err)
	}

	s.metrics.MessageIngested(ctx, metrics.ResultOK, time.Since(start))
	s.log.Debug("Message relayed", "message_id", msg.ID.String(), "topic", s.topic)
	return msg, nil
}
