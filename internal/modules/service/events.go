package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EventPublisher is satisfied by queue.Publisher.
type EventPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}) error
}

const (
	EventTaskCreated       = "task.created"
	EventTaskUpdated       = "task.updated"
	EventTaskCompleted     = "task.completed"
	EventTaskDeleted       = "task.deleted"
	EventTaskImported      = "task.imported"
	EventChatTurnCompleted = "chat.turn_completed"
)

type TaskEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	TaskIDs   []int64   `json:"task_ids"`
	Title     string    `json:"title,omitempty"`
	Completed *bool     `json:"completed,omitempty"`
	At        time.Time `json:"at"`
}

type ChatTurnEvent struct {
	Type           string    `json:"type"`
	UserID         string    `json:"user_id"`
	ConversationID int64     `json:"conversation_id"`
	Tools          []string  `json:"tools"`
	Fallback       bool      `json:"fallback"`
	At             time.Time `json:"at"`
}

// eventSink publishes audit events best-effort: failures are logged, never
// returned to the caller whose mutation already committed.
type eventSink struct {
	pub      EventPublisher
	exchange string
	log      *zap.Logger
}

func (s eventSink) emit(ctx context.Context, routingKey string, evt interface{}) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishJSON(context.WithoutCancel(ctx), s.exchange, routingKey, evt); err != nil {
		s.log.Warn("publish event failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
