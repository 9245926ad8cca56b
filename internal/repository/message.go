package repository

import (
	"context"

	"github.com/psds-microservice/voice-support/internal/model"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// ListByTicket: тред по возрастанию created_at, при равенстве по id.
func (r *MessageRepository) ListByTicket(ctx context.Context, ticketID uint64) ([]model.Message, error) {
	var items []model.Message
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Append пишет пару user/ai одним батчем.
func (r *ConversationRepository) Append(ctx context.Context, msgs ...*model.ConversationMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(msgs).Error
}

func (r *ConversationRepository) List(ctx context.Context, conversationID string) ([]model.ConversationMessage, error) {
	var items []model.ConversationMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}
