package chat

import (
	"time"

	"tourchat-service/internal/models"
)

// ResolveStatus derives a booking-scoped chat's status from the booking's
// state and the post-tour window. Precedence: disputed beats everything,
// then cancelled, then the active states. A completed booking keeps the
// chat in POST_TOUR strictly until the expiry instant; at or past expiry
// the chat is CLOSED. Unrecognized booking statuses also resolve to CLOSED.
//
// Direct chats never go through here; they have no booking and are always
// ACTIVE.
func ResolveStatus(bookingStatus string, postTourExpiry *time.Time, now time.Time) string {
	switch bookingStatus {
	case models.BookingDisputed:
		return models.ChatLocked
	case models.BookingCancelled:
		return models.ChatClosed
	case models.BookingConfirmed, models.BookingOngoing:
		return models.ChatActive
	case models.BookingCompleted:
		if postTourExpiry != nil && now.Before(*postTourExpiry) {
			return models.ChatPostTour
		}
		return models.ChatClosed
	default:
		return models.ChatClosed
	}
}
