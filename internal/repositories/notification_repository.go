package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"tourchat-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository persists per-recipient notices.
type NotificationRepository interface {
	Create(ctx context.Context, recipientID int, kind string, bookingID *int, body string) (models.Notification, error)
	ListForRecipient(ctx context.Context, recipientID, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, recipientID int) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, recipient_id, kind, booking_id, body, is_read, created_at`

// Create stores a notification for one recipient.
func (r *NotificationRepo) Create(ctx context.Context, recipientID int, kind string, bookingID *int, body string) (models.Notification, error) {
	var n models.Notification
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO notifications (recipient_id, kind, booking_id, body)
         VALUES ($1, $2, $3, $4) RETURNING `+notificationColumns,
		recipientID, kind, bookingID, body).
		Scan(&n.ID, &n.RecipientID, &n.Kind, &n.BookingID, &n.Body, &n.IsRead, &n.CreatedAt)
	return n, err
}

// ListForRecipient returns the recipient's notifications, newest first.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID, limit int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+notificationColumns+` FROM notifications WHERE recipient_id=$1
         ORDER BY created_at DESC LIMIT $2`,
		recipientID, limit)
	return list, err
}

// MarkRead flags a notification as read; the recipient filter keeps users
// from acknowledging each other's notices.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, recipientID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id=$1 AND recipient_id=$2`,
		notificationID, recipientID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
