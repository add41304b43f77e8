package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"

	"chat-relay/backend/internal/models"
	"chat-relay/backend/internal/service"
	"chat-relay/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MessageReader is the read side of the message store
type MessageReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	FindRecent(ctx context.Context, limit int) ([]models.Message, error)
}

// MessageController serves message history
type MessageController struct {
	messages MessageReader
}

// NewMessageController creates a new message controller
func NewMessageController(messages MessageReader) *MessageController {
	return &MessageController{messages: messages}
}

// RegisterRoutes registers the message history routes
func (mc *MessageController) RegisterRoutes(group *gin.RouterGroup) {
	messages := group.Group("/messages")
	{
		messages.GET("", mc.ListRecent)
		messages.GET("/:id", mc.GetMessage)
	}
}

// ListRecent returns the newest messages first
func (mc *MessageController) ListRecent(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = c.Error(errors.NewBadRequestError("INVALID_LIMIT", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	messages, err := mc.messages.FindRecent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// GetMessage returns one message by id
func (mc *MessageController) GetMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(errors.NewBadRequestError("INVALID_ID", "message id must be a UUID"))
		return
	}

	msg, err := mc.messages.FindByID(c.Request.Context(), id)
	if stderrors.Is(err, service.ErrMessageNotFound) {
		_ = c.Error(errors.NewNotFoundError("MESSAGE_NOT_FOUND", "message not found"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, msg)
}
