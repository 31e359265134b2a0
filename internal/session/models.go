package session

import "time"

// Conversation is one user-message/bot-response turn. Rows are immutable once
// written; the durable copy is the source of truth when Redis disagrees.
type Conversation struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID      int64     `gorm:"index;not null" json:"chat_id"`
	SessionID   string    `gorm:"type:varchar(36);index;not null" json:"session_id"`
	UserMessage string    `gorm:"type:text;not null" json:"user_message"`
	BotResponse string    `gorm:"type:text;not null" json:"bot_response"`
	Timestamp   time.Time `gorm:"autoCreateTime" json:"timestamp"`
	MessageType string    `gorm:"type:varchar(50);default:'text'" json:"message_type"`
}

func (Conversation) TableName() string { return "conversation_history" }

// Statistics is the aggregate over every turn a chat has ever stored,
// across all of its historical sessions.
type Statistics struct {
	TotalMessages   int64      `json:"total_messages"`
	FirstMessage    *time.Time `json:"first_message"`
	LastMessage     *time.Time `json:"last_message"`
	SessionDuration *float64   `json:"session_duration_seconds"`
}

// Turn is the cache-facing shape of a conversation entry, serialized into the
// conversation:{session_id} Redis list.
type Turn struct {
	UserMessage string `json:"user_message"`
	BotResponse string `json:"bot_response"`
	Timestamp   string `json:"timestamp"`
}
