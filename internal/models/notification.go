package models

import "time"

// NotificationBookingStatus marks a notice generated from a booking
// lifecycle event.
const NotificationBookingStatus = "booking_status"

// Notification is a persisted, per-recipient notice. It replaces the old
// process-local notification array and survives restarts.
type Notification struct {
	ID          int       `db:"id" json:"id"`
	RecipientID int       `db:"recipient_id" json:"recipient_id"`
	Kind        string    `db:"kind" json:"kind"`
	BookingID   *int      `db:"booking_id" json:"booking_id,omitempty"`
	Body        string    `db:"body" json:"body"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
