package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ConversationLog is one archived transcript message of a completed session.
type ConversationLog struct {
	ID        string           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string           `gorm:"column:user_id;type:text;index" json:"user_id"`
	SessionID string           `gorm:"column:session_id;type:text;index" json:"session_id"`
	Seq       int              `gorm:"column:seq;type:integer" json:"seq"`
	Role      string           `gorm:"column:role;type:text" json:"role"` // "user" | "assistant"
	Content   string           `gorm:"column:content;type:text" json:"content"`
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"embedding,omitempty"`
	Timestamp time.Time        `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
	Metadata  datatypes.JSON   `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (ConversationLog) TableName() string { return "conversation_logs" }
