package models

import "time"

// Booking statuses as published by the booking subsystem. The full
// enumeration includes ongoing and disputed even though older booking flows
// only ever emit the first four.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingOngoing   = "ongoing"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
	BookingDisputed  = "disputed"
)

// Booking is owned by the booking subsystem. This service reads it and
// applies status updates received from the event bus; it never mutates
// bookings on its own behalf.
type Booking struct {
	ID             int        `db:"id" json:"id"`
	TouristID      int        `db:"tourist_id" json:"tourist_id"`
	GuideID        int        `db:"guide_id" json:"guide_id"`
	Destination    string     `db:"destination" json:"destination"`
	StartDate      *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	Status         string     `db:"status" json:"status"`
	PostTourExpiry *time.Time `db:"post_tour_expiry" json:"post_tour_expiry,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// BookingEvent is the payload the booking subsystem publishes on every
// status change.
type BookingEvent struct {
	BookingID      int        `json:"booking_id"`
	TouristID      int        `json:"tourist_id"`
	GuideID        int        `json:"guide_id"`
	Status         string     `json:"status"`
	PostTourExpiry *time.Time `json:"post_tour_expiry,omitempty"`
}

// UserEvent is broadcast through personal-room websockets so dashboards can
// refresh without polling.
type UserEvent struct {
	Type    string   `json:"type"`
	Booking *Booking `json:"booking,omitempty"`
}
