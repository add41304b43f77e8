package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"chat-relay/backend/internal/models"
	"chat-relay/backend/internal/pubsub"
	"chat-relay/backend/internal/repository"

	"github.com/google/uuid"
)

// recorder captures the order in which the store and the channel were called
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeRepo struct {
	rec     *recorder
	saveErr error
	findErr error
	finds   int

	mu       sync.Mutex
	messages map[uuid.UUID]models.Message
}

func newFakeRepo(rec *recorder) *fakeRepo {
	return &fakeRepo{rec: rec, messages: make(map[uuid.UUID]models.Message)}
}

func (r *fakeRepo) Save(_ context.Context, msg *models.Message) error {
	if r.rec != nil {
		r.rec.add("save")
	}
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.messages[msg.ID]; dup {
		return errors.New("duplicate id")
	}
	r.messages[msg.ID] = *msg
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.findErr != nil {
		return nil, r.findErr
	}
	msg, ok := r.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &msg, nil
}

func (r *fakeRepo) FindRecent(_ context.Context, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := make([]models.Message, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) HealthCheck(context.Context) error { return nil }

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type fakeBroadcaster struct {
	rec        *recorder
	publishErr error
	// store, when set, is looked up for the published message id
	store *fakeRepo

	mu        sync.Mutex
	published [][]byte
	topics    []string
	storedErr []error
}

func (b *fakeBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	if b.rec != nil {
		b.rec.add("publish")
	}
	if b.store != nil {
		var wire struct {
			ID uuid.UUID `json:"id"`
		}
		err := json.Unmarshal(payload, &wire)
		if err == nil {
			_, err = b.store.FindByID(ctx, wire.ID)
		}
		b.mu.Lock()
		b.storedErr = append(b.storedErr, err)
		b.mu.Unlock()
	}
	if b.publishErr != nil {
		return b.publishErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, payload)
	b.topics = append(b.topics, topic)
	return nil
}

func (b *fakeBroadcaster) Subscribe(context.Context, string) (pubsub.Subscription, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroadcaster) HealthCheck(context.Context) error { return nil }
