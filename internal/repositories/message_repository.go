package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"tourchat-service/internal/models"
)

// MessageRepository defines interactions with a chat's append-only message
// log. Content and created_at are never updated; only is_read may change.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID, senderID int, senderRole, messageType, content string) (models.Message, error)
	ListMessages(ctx context.Context, chatID, offset, limit int) ([]models.Message, error)
	CountRecentFromSender(ctx context.Context, chatID, senderID int, since time.Time) (int, error)
	MarkRead(ctx context.Context, chatID, readerID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, chat_id, sender_id, sender_role, message_type, content, is_read, created_at`

// CreateMessage appends a message with a server-assigned creation time.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID, senderID int, senderRole, messageType, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, sender_role, message_type, content)
         VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		chatID, senderID, senderRole, messageType, content).
		Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.SenderRole, &msg.MessageType, &msg.Content, &msg.IsRead, &msg.CreatedAt)
	return msg, err
}

// ListMessages returns one page of a chat's messages, oldest first. The id
// tiebreak keeps the order stable when two messages land on the same
// timestamp.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID, offset, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id=$1
         ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`,
		chatID, limit, offset)
	return msgs, err
}

// CountRecentFromSender counts the sender's messages in the chat created at
// or after the cutoff. Backs the sliding-window rate limit.
func (r *MessageRepo) CountRecentFromSender(ctx context.Context, chatID, senderID int, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM messages WHERE chat_id=$1 AND sender_id=$2 AND created_at >= $3`,
		chatID, senderID, since)
	return n, err
}

// MarkRead flags the counterpart's unread messages as read; a history fetch
// doubles as the delivery receipt.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID, readerID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE chat_id=$1 AND sender_id <> $2 AND is_read = FALSE`,
		chatID, readerID)
	return err
}
