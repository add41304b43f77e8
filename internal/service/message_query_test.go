package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"chat-relay/backend/internal/models"
	"chat-relay/backend/pkg/cache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, repo *fakeRepo, n int) []*models.Message {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*models.Message, 0, n)
	for i := 0; i < n; i++ {
		msg := models.NewMessage("m", "u", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Save(context.Background(), msg))
		out = append(out, msg)
	}
	return out
}

func TestQuery_FindByIDUsesCache(t *testing.T) {
	repo := newFakeRepo(nil)
	msgs := seed(t, repo, 1)
	c := cache.New[uuid.UUID, models.Message](cache.Options{TTL: time.Minute})
	defer c.Close()
	q := NewMessageQueryService(repo, c, 50, 200)

	for i := 0; i < 3; i++ {
		got, err := q.FindByID(context.Background(), msgs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, msgs[0].ID, got.ID)
	}
	assert.Equal(t, 1, repo.finds)
}

func TestQuery_FindByIDNotFound(t *testing.T) {
	q := NewMessageQueryService(newFakeRepo(nil), nil, 50, 200)

	_, err := q.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestQuery_FindByIDStoreError(t *testing.T) {
	repo := newFakeRepo(nil)
	repo.findErr = errors.New("db down")
	q := NewMessageQueryService(repo, nil, 50, 200)

	_, err := q.FindByID(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMessageNotFound)
}

func TestQuery_Limit(t *testing.T) {
	q := NewMessageQueryService(newFakeRepo(nil), nil, 50, 200)

	assert.Equal(t, 50, q.Limit(0))
	assert.Equal(t, 50, q.Limit(-3))
	assert.Equal(t, 10, q.Limit(10))
	assert.Equal(t, 200, q.Limit(1000))
}

func TestQuery_FindRecentNewestFirst(t *testing.T) {
	repo := newFakeRepo(nil)
	msgs := seed(t, repo, 5)
	q := NewMessageQueryService(repo, nil, 50, 200)

	got, err := q.FindRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, msgs[4].ID, got[0].ID)
	assert.Equal(t, msgs[3].ID, got[1].ID)
}

func TestQuery_FindRecentEmptyIsNotNil(t *testing.T) {
	q := NewMessageQueryService(newFakeRepo(nil), nil, 50, 200)

	got, err := q.FindRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
