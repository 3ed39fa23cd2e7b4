package model

import "time"

type Conversation struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID string `gorm:"type:text;not null;index:ix_conversations_user_updated,priority:1" json:"user_id"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;index:ix_conversations_user_updated,priority:2" json:"updated_at"`

	// Conversation <-> Message
	Messages []Message `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Conversation) TableName() string { return "conversations" }
