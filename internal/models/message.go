package models

import "time"

// Sender roles inside a chat.
const (
	RoleTourist = "tourist"
	RoleGuide   = "guide"
)

// MessageTypeText is the only message type clients currently send.
const MessageTypeText = "TEXT"

// Message is one entry in a chat's append-only log. Content and CreatedAt
// are immutable once persisted; CreatedAt defines the total order within a
// chat.
type Message struct {
	ID          int       `db:"id" json:"id"`
	ChatID      int       `db:"chat_id" json:"chat_id"`
	SenderID    int       `db:"sender_id" json:"sender_id"`
	SenderRole  string    `db:"sender_role" json:"sender_role"`
	MessageType string    `db:"message_type" json:"message_type"`
	Content     string    `db:"content" json:"content"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ChatEvent is broadcast through chat-room websockets.
type ChatEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}
