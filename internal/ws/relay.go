// Package ws bridges client WebSocket connections to the ingest pipeline and
// the broadcast channel.
package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"chat-relay/backend/internal/models"
	"chat-relay/backend/internal/pubsub"
	"chat-relay/backend/pkg/errors"
	"chat-relay/backend/pkg/logger"
	"chat-relay/backend/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// ErrRelayClosed is returned by Serve once the relay has been shut down
var ErrRelayClosed = stderrors.New("relay closed")

// Ingester runs one incoming message through persist-then-publish
type Ingester interface {
	Execute(ctx context.Context, content, author string) (*models.Message, error)
}

// RelayOptions configures a Relay
type RelayOptions struct {
	Topic         string
	PingPeriod    time.Duration
	IngestTimeout time.Duration
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

// Relay serves client connections. Each connection runs an inbound pump
// (client frames into the pipeline) and an outbound pump (channel payloads to
// the client). Whichever pump exits first ends the session.
type Relay struct {
	ingest        Ingester
	broadcaster   pubsub.Broadcaster
	topic         string
	pingPeriod    time.Duration
	ingestTimeout time.Duration
	validate      *validator.Validate
	log           *logger.Logger
	metrics       *metrics.Metrics

	root     context.Context
	shutdown context.CancelFunc

	mu       sync.Mutex
	closed   bool
	sessions sync.WaitGroup
}

// NewRelay creates a relay over the ingest pipeline and the broadcast channel
func NewRelay(ingest Ingester, broadcaster pubsub.Broadcaster, opts RelayOptions) *Relay {
	if opts.Topic == "" {
		opts.Topic = "messages"
	}
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobal()
	}
	root, shutdown := context.WithCancel(context.Background())
	return &Relay{
		ingest:        ingest,
		broadcaster:   broadcaster,
		topic:         opts.Topic,
		pingPeriod:    opts.PingPeriod,
		ingestTimeout: opts.IngestTimeout,
		validate:      validator.New(),
		log:           opts.Logger,
		metrics:       opts.Metrics,
		root:          root,
		shutdown:      shutdown,
	}
}

// Serve relays one connection until either pump exits, then releases the
// subscription and closes the connection exactly once.
//
// It returns nil on a clean end (client close, cancellation, shutdown) and a
// setup or transport error otherwise. After Shutdown it closes conn and
// returns ErrRelayClosed.
func (r *Relay) Serve(ctx context.Context, conn Conn) error {
	if !r.enter() {
		_ = conn.Close()
		return ErrRelayClosed
	}
	defer r.sessions.Done()

	log := r.log.WithConnectionID(uuid.NewString())

	sub, err := r.broadcaster.Subscribe(ctx, r.topic)
	if err != nil {
		_ = conn.Close()
		log.LogError(err, "Failed to subscribe", "topic", r.topic)
		return errors.Setup("subscribe "+r.topic, err)
	}

	r.metrics.ConnectionOpened(ctx)
	defer r.metrics.ConnectionClosed(context.WithoutCancel(ctx))
	log.Info("Connection opened", "topic", r.topic)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopShutdown := context.AfterFunc(r.root, cancel)
	defer stopShutdown()

	// Closing the connection is the only way to unblock a pending read.
	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() { _ = conn.Close() })
	}
	stopClose := context.AfterFunc(ctx, closeConn)
	defer stopClose()

	var g errgroup.Group
	g.Go(func() error {
		defer cancel()
		return r.inbound(ctx, conn, log)
	})
	g.Go(func() error {
		defer cancel()
		return r.outbound(ctx, conn, sub, log)
	})
	err = g.Wait()

	if closeErr := sub.Close(); closeErr != nil {
		log.Warn("Failed to release subscription", "error", closeErr.Error())
	}
	closeConn()

	if err != nil {
		log.Warn("Connection ended with error", "error", err.Error(), "kind", string(errors.KindOf(err)))
	} else {
		log.Info("Connection closed")
	}
	return err
}

// enter registers a session unless the relay is shut down
func (r *Relay) enter() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.sessions.Add(1)
	return true
}

// Shutdown ends every live session and waits for them to finish or for ctx.
// Sessions arriving afterwards are refused.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.shutdown()

	done := make(chan struct{})
	go func() {
		r.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) inbound(ctx context.Context, conn FrameReader, log *logger.Logger) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return errors.Transport("read frame", err)
		}

		if messageType != websocket.TextMessage {
			r.metrics.FrameDropped(ctx, metrics.ReasonNonText)
			continue
		}

		in, err := r.decode(data)
		if err != nil {
			r.metrics.FrameDropped(ctx, metrics.ReasonDecode)
			log.Debug("Dropped inbound frame", "error", err.Error())
			continue
		}

		// An accepted frame finishes its pipeline run even if the session ends meanwhile.
		ingestCtx, cancelIngest := context.WithTimeout(context.WithoutCancel(ctx), r.ingestTimeout)
		msg, err := r.ingest.Execute(ingestCtx, in.Text(), in.AuthorID())
		cancelIngest()

		switch {
		case err != nil && msg != nil:
			log.Warn("Message stored but not broadcast", "message_id", msg.ID.String(), "error", err.Error())
		case err != nil:
			log.Warn("Message dropped", "kind", string(errors.KindOf(err)), "error", err.Error())
		}
	}
}

func (r *Relay) decode(data []byte) (models.IncomingMessage, error) {
	var in models.IncomingMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return in, errors.Decode("unmarshal frame", err)
	}
	if err := r.validate.Struct(in); err != nil {
		return in, errors.Decode("validate frame", err)
	}
	return in, nil
}

func (r *Relay) outbound(ctx context.Context, conn FrameWriter, sub pubsub.Subscription, log *logger.Logger) error {
	var ping <-chan time.Time
	if r.pingPeriod > 0 {
		ticker := time.NewTicker(r.pingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case payload, ok := <-sub.Messages():
			if !ok {
				log.Info("Subscription ended", "topic", r.topic)
				return nil
			}
			if err := conn.WriteText(payload); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return errors.Transport("write frame", err)
			}

		case <-ping:
			if err := conn.WritePing(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return errors.Transport("write ping", err)
			}
		}
	}
}
