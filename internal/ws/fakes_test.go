package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"chat-relay/backend/internal/models"
	"chat-relay/backend/internal/pubsub"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type frame struct {
	messageType int
	data        []byte
}

// fakeConn feeds scripted frames to the inbound pump and records writes
type fakeConn struct {
	frames   chan frame
	closed   chan struct{}
	once     sync.Once
	closes   atomic.Int32
	writeErr error

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan frame, 16), closed: make(chan struct{})}
}

func (c *fakeConn) send(messageType int, data string) {
	c.frames <- frame{messageType: messageType, data: []byte(data)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return f.messageType, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteText(data []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) WritePing() error { return c.writeErr }

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.written))
	for _, w := range c.written {
		out = append(out, string(w))
	}
	return out
}

type ingestCall struct {
	content string
	author  string
}

// fakeIngester records calls and optionally fails them
type fakeIngester struct {
	err error

	mu    sync.Mutex
	calls []ingestCall
}

func (f *fakeIngester) Execute(_ context.Context, content, author string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ingestCall{content: content, author: author})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: uuid.New(), Content: content, UserID: author}, nil
}

func (f *fakeIngester) list() []ingestCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingestCall(nil), f.calls...)
}

// countingSub wraps a subscription to count Close calls
type countingSub struct {
	pubsub.Subscription
	closes atomic.Int32
}

func (s *countingSub) Close() error {
	s.closes.Add(1)
	return s.Subscription.Close()
}

type countingBroadcaster struct {
	*pubsub.MemoryBroadcaster
	subscribeErr error

	mu   sync.Mutex
	subs []*countingSub
}

func (b *countingBroadcaster) Subscribe(ctx context.Context, topic string) (pubsub.Subscription, error) {
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	sub, err := b.MemoryBroadcaster.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	cs := &countingSub{Subscription: sub}
	b.mu.Lock()
	b.subs = append(b.subs, cs)
	b.mu.Unlock()
	return cs, nil
}

func (b *countingBroadcaster) last() *countingSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return nil
	}
	return b.subs[len(b.subs)-1]
}
