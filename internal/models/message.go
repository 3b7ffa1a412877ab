package models

import (
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message. Messages are append-only.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index:idx_messages_user_time,priority:1" json:"userId"`
	CompanionID uint      `gorm:"index" json:"companionId"`
	Role        Role      `gorm:"size:16;not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Timestamp   time.Time `gorm:"not null;index:idx_messages_user_time,priority:2" json:"timestamp"`
}

// SendMessageRequest is the body of POST /api/messages
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=8000"`
}

// Exchange is a user message together with the companion's reply
type Exchange struct {
	UserMessage      *Message `json:"userMessage"`
	AssistantMessage *Message `json:"assistantMessage"`
}
