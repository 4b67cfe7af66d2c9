package models

import "time"

// Chat statuses derived from the linked booking's state.
const (
	ChatActive   = "ACTIVE"
	ChatPostTour = "POST_TOUR"
	ChatLocked   = "LOCKED"
	ChatClosed   = "CLOSED"
)

// Chat is one conversation scope between a tourist and a guide:
// booking-scoped when BookingID is set, otherwise a direct pair chat.
// Status is a write-through cache of the resolver output, recomputed on
// every access; it is never the source of truth.
type Chat struct {
	ID             int        `db:"id" json:"id"`
	TouristID      int        `db:"tourist_id" json:"tourist_id"`
	GuideID        int        `db:"guide_id" json:"guide_id"`
	BookingID      *int       `db:"booking_id" json:"booking_id,omitempty"`
	Status         string     `db:"status" json:"status"`
	PostTourExpiry *time.Time `db:"post_tour_expiry" json:"post_tour_expiry,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ChatSummary provides the API-friendly view of a chat for one participant.
type ChatSummary struct {
	ChatID    int       `json:"chat_id"`
	PartnerID int       `json:"partner_id"`
	BookingID *int      `json:"booking_id,omitempty"`
	Status    string    `json:"status"`
	Created   time.Time `json:"created_at"`
}
