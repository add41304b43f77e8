package repository

import (
	"context"
	"errors"
	"fmt"

	"chat-relay/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no message has the requested identifier
var ErrNotFound = errors.New("message not found")

// MessageRepository is the durable store for relayed messages
type MessageRepository interface {
	Save(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	// FindRecent returns up to limit messages, newest first
	FindRecent(ctx context.Context, limit int) ([]models.Message, error)
	HealthCheck(ctx context.Context) error
}

// GormMessageRepository stores messages in PostgreSQL through gorm
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository wraps a shared gorm pool
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Migrate creates the messages table and its indexes
func (r *GormMessageRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.Message{}); err != nil {
		return fmt.Errorf("failed to migrate messages: %w", err)
	}
	return nil
}

func (r *GormMessageRepository) Save(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to insert message %s: %w", message.ID, err)
	}
	return nil
}

func (r *GormMessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message %s: %w", id, err)
	}
	return &message, nil
}

func (r *GormMessageRepository) FindRecent(ctx context.Context, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	return messages, nil
}

// HealthCheck runs a side-effect free round trip
func (r *GormMessageRepository) HealthCheck(ctx context.Context) error {
	var one int
	if err := r.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}
