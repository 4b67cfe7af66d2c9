package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"tourchat-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	GetOrCreateDirectChat(ctx context.Context, touristID, guideID int) (models.Chat, error)
	GetOrCreateBookingChat(ctx context.Context, booking models.Booking) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	GetChatByBooking(ctx context.Context, bookingID int) (models.Chat, error)
	ListChats(ctx context.Context, userID int) ([]models.Chat, error)
	UpdateCachedStatus(ctx context.Context, chatID int, status string, postTourExpiry *time.Time) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, tourist_id, guide_id, booking_id, status, post_tour_expiry, created_at`

// GetOrCreateDirectChat returns the pair's direct chat, creating it on first
// access. Concurrent racers hit the partial unique index on
// (tourist_id, guide_id); losers fall through to the refetch and resolve to
// the winner's row.
func (r *ChatRepo) GetOrCreateDirectChat(ctx context.Context, touristID, guideID int) (models.Chat, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chats (tourist_id, guide_id, status) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		touristID, guideID, models.ChatActive)
	if err != nil {
		return models.Chat{}, err
	}

	var chat models.Chat
	err = r.db.GetContext(ctx, &chat,
		`SELECT `+chatColumns+` FROM chats WHERE tourist_id=$1 AND guide_id=$2 AND booking_id IS NULL`,
		touristID, guideID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetOrCreateBookingChat returns the booking's chat, creating it on first
// access with the booking's current post-tour expiry. Same
// conflict-then-refetch scheme, keyed on the booking_id unique constraint.
func (r *ChatRepo) GetOrCreateBookingChat(ctx context.Context, booking models.Booking) (models.Chat, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chats (tourist_id, guide_id, booking_id, status, post_tour_expiry)
         VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		booking.TouristID, booking.GuideID, booking.ID, models.ChatActive, booking.PostTourExpiry)
	if err != nil {
		return models.Chat{}, err
	}
	return r.GetChatByBooking(ctx, booking.ID)
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetChatByBooking fetches the chat linked to a booking.
func (r *ChatRepo) GetChatByBooking(ctx context.Context, bookingID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE booking_id=$1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns every chat the user is a party to, newest first.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT `+chatColumns+` FROM chats WHERE tourist_id=$1 OR guide_id=$1 ORDER BY created_at DESC`,
		userID)
	return chats, err
}

// UpdateCachedStatus writes the freshly resolved status back. The column is
// only a cache; callers treat failures as lost freshness, not lost data.
func (r *ChatRepo) UpdateCachedStatus(ctx context.Context, chatID int, status string, postTourExpiry *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chats SET status=$2, post_tour_expiry=$3 WHERE id=$1`,
		chatID, status, postTourExpiry)
	return err
}
