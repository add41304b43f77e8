package service

import (
	"context"
	stderrors "errors"

	"chat-relay/backend/internal/models"
	"chat-relay/backend/internal/repository"
	"chat-relay/backend/pkg/cache"

	"github.com/google/uuid"
)

// ErrMessageNotFound is returned when a message does not exist
var ErrMessageNotFound = stderrors.New("message not found")

// MessageQueryService reads relayed messages back from the store
type MessageQueryService struct {
	repo         repository.MessageRepository
	cache        *cache.Cache[uuid.UUID, models.Message]
	defaultLimit int
	maxLimit     int
}

// NewMessageQueryService creates a query service. A nil cache disables caching.
func NewMessageQueryService(repo repository.MessageRepository, c *cache.Cache[uuid.UUID, models.Message], defaultLimit, maxLimit int) *MessageQueryService {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &MessageQueryService{
		repo:         repo,
		cache:        c,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// FindByID returns one message. Messages are immutable so hits never go stale.
func (s *MessageQueryService) FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	if s.cache != nil {
		if msg, ok := s.cache.Get(id); ok {
			return &msg, nil
		}
	}

	msg, err := s.repo.FindByID(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(id, *msg)
	}
	return msg, nil
}

// Limit clamps a requested page size into [1, maxLimit]; 0 means the default
func (s *MessageQueryService) Limit(requested int) int {
	switch {
	case requested <= 0:
		return s.defaultLimit
	case requested > s.maxLimit:
		return s.maxLimit
	default:
		return requested
	}
}

// FindRecent returns the newest messages first
func (s *MessageQueryService) FindRecent(ctx context.Context, limit int) ([]models.Message, error) {
	messages, err := s.repo.FindRecent(ctx, s.Limit(limit))
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}
