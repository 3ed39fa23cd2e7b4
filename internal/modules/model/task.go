package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Task struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID string `gorm:"type:text;not null;index:ix_tasks_user_id;index:ix_tasks_user_completed,priority:1" json:"user_id"`

	Title       string     `gorm:"type:varchar(200);not null" json:"title"`
	Description *string    `gorm:"type:text" json:"description"`
	Completed   bool       `gorm:"not null;default:false;index:ix_tasks_completed;index:ix_tasks_user_completed,priority:2" json:"completed"`
	Priority    string     `gorm:"type:varchar(10);not null;default:'medium';check:priority IN ('low','medium','high');index:ix_tasks_priority" json:"priority"`
	DueDate     *time.Time `gorm:"index:ix_tasks_due_date" json:"due_date"`

	Tags datatypes.JSONSlice[string] `gorm:"not null;default:'[]'" swaggertype:"array,string" json:"tags"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null" json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

// ValidPriority reports whether p is one of the three priority levels.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
