package service

import (
	"context"
	"errors"

	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/evotodo/todo-api/internal/modules/repo"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit      = 10
	DefaultConversationLimit = 20
	MaxTranscriptLimit       = 200
)

type ConversationService interface {
	// GetOrCreate reuses id when it belongs to userID; otherwise, including
	// when id is foreign or missing, a fresh conversation is created.
	GetOrCreate(ctx context.Context, userID string, id *int64) (*model.Conversation, error)
	AppendMessage(ctx context.Context, in AppendMessageInput) (*model.Message, error)
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]model.Message, error)
	Messages(ctx context.Context, userID string, conversationID int64, limit int) ([]model.Message, error)
	List(ctx context.Context, userID string, limit int) ([]model.Conversation, error)
	Delete(ctx context.Context, userID string, id int64) (bool, error)
}

type conversationService struct {
	r   repo.ConversationRepo
	log *zap.Logger
}

func NewConversationService(r repo.ConversationRepo, log *zap.Logger) ConversationService {
	return &conversationService{r: r, log: log}
}

func (s *conversationService) GetOrCreate(ctx context.Context, userID string, id *int64) (*model.Conversation, error) {
	if id != nil && *id > 0 {
		c, err := s.r.Get(ctx, userID, *id)
		if err == nil {
			return c, nil
		}
		if !errors.Is(mapNotFound(err), ErrNotFound) {
			return nil, err
		}
		s.log.Sugar().Infow("conversation not found for user, starting a new one", "user_id", userID, "conversation_id", *id)
	}

	c := &model.Conversation{UserID: userID}
	if err := s.r.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

type AppendMessageInput struct {
	ConversationID int64
	UserID         string
	Role           string
	Content        string
	ToolCalls      []model.ToolCallRecord
}

func (s *conversationService) AppendMessage(ctx context.Context, in AppendMessageInput) (*model.Message, error) {
	if in.Role != model.RoleUser && in.Role != model.RoleAssistant {
		return nil, invalid("Role must be user or assistant")
	}
	msg := &model.Message{
		ConversationID: in.ConversationID,
		UserID:         in.UserID,
		Role:           in.Role,
		Content:        in.Content,
		ToolCalls:      in.ToolCalls,
	}
	if err := s.r.AppendMessage(ctx, msg); err != nil {
		return nil, mapNotFound(err)
	}
	return msg, nil
}

func (s *conversationService) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.r.RecentMessages(ctx, conversationID, limit)
}

// Messages reads a transcript after checking ownership.
func (s *conversationService) Messages(ctx context.Context, userID string, conversationID int64, limit int) ([]model.Message, error) {
	if _, err := s.r.Get(ctx, userID, conversationID); err != nil {
		return nil, mapNotFound(err)
	}
	if limit <= 0 || limit > MaxTranscriptLimit {
		limit = MaxTranscriptLimit
	}
	items, err := s.r.RecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Message{}
	}
	return items, nil
}

func (s *conversationService) List(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultConversationLimit
	}
	items, err := s.r.List(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Conversation{}
	}
	return items, nil
}

func (s *conversationService) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	n, err := s.r.Delete(ctx, userID, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
