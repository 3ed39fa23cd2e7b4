package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID int64  `gorm:"not null;index:ix_messages_conversation_created,priority:1" json:"conversation_id"`
	UserID         string `gorm:"type:text;not null;index:ix_messages_user_id" json:"user_id"`

	Role    string `gorm:"type:varchar(20);not null;check:role IN ('user','assistant')" json:"role"`
	Content string `gorm:"type:text;not null" json:"content"`

	ToolCalls datatypes.JSONSlice[ToolCallRecord] `gorm:"not null;default:'[]'" swaggertype:"array,object" json:"tool_calls"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;index:ix_messages_conversation_created,priority:2" json:"created_at"`

	// Message <-> Conversation
	Conversation *Conversation `gorm:"foreignKey:ConversationID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Message) TableName() string { return "messages" }

// ToolCallRecord is the audit entry kept for each tool executed while
// producing an assistant message.
type ToolCallRecord struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     any            `json:"result,omitempty"`
}
