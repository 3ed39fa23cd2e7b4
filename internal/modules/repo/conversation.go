package repo

import (
	"context"
	"time"

	"github.com/evotodo/todo-api/internal/modules/model"
	"gorm.io/gorm"
)

type ConversationRepo interface {
	Create(ctx context.Context, c *model.Conversation) error
	Get(ctx context.Context, userID string, id int64) (*model.Conversation, error)
	List(ctx context.Context, userID string, limit int) ([]model.Conversation, error)
	Delete(ctx context.Context, userID string, id int64) (int64, error)
	AppendMessage(ctx context.Context, msg *model.Message) error
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]model.Message, error)
}

type conversationRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db, now: time.Now}
}

func (r *conversationRepo) Create(ctx context.Context, c *model.Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *conversationRepo) Get(ctx context.Context, userID string, id int64) (*model.Conversation, error) {
	var c model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversationRepo) List(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	var items []model.Conversation
	return items, r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&items).Error
}

// Delete removes the conversation and its messages. Messages are deleted
// explicitly so the cascade does not depend on foreign key enforcement.
func (r *conversationRepo) Delete(ctx context.Context, userID string, id int64) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Conversation
		if err := tx.Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&c).Error; err != nil {
			return err
		}
		if c.ID == 0 {
			return nil
		}
		if err := tx.Where("conversation_id = ?", c.ID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&c)
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

// AppendMessage inserts msg and bumps the parent conversation's updated_at in
// one transaction. created_at is forced strictly after the previous message
// so (created_at, id) stays a total order even with a coarse clock.
func (r *conversationRepo) AppendMessage(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.Where("id = ? AND user_id = ?", msg.ConversationID, msg.UserID).First(&conv).Error; err != nil {
			return err
		}

		now := r.now()
		last := model.Message{}
		if err := tx.Where("conversation_id = ?", conv.ID).Order("created_at DESC, id DESC").Limit(1).Find(&last).Error; err != nil {
			return err
		}
		if last.ID != 0 {
			msg.CreatedAt = NextTimestamp(last.CreatedAt, now)
		} else {
			msg.CreatedAt = now.Truncate(time.Microsecond)
		}
		if msg.ToolCalls == nil {
			msg.ToolCalls = []model.ToolCallRecord{}
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		bumped := NextTimestamp(conv.UpdatedAt, now)
		if msg.CreatedAt.After(bumped) {
			bumped = msg.CreatedAt
		}
		return tx.Model(&model.Conversation{}).Where("id = ?", conv.ID).Update("updated_at", bumped).Error
	})
}

// RecentMessages returns the newest limit messages, oldest first.
func (r *conversationRepo) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]model.Message, error) {
	var items []model.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}
