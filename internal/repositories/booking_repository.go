package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"tourchat-service/internal/models"
)

var ErrBookingNotFound = errors.New("booking not found")

// BookingRepository reads bookings owned by the booking subsystem.
// ApplyStatus is only driven by lifecycle events arriving on the bus; the
// chat engine itself never mutates bookings.
type BookingRepository interface {
	GetBooking(ctx context.Context, bookingID int) (models.Booking, error)
	ApplyStatus(ctx context.Context, bookingID int, status string, postTourExpiry *time.Time) error
}

// BookingRepo is a sqlx implementation of BookingRepository.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo constructs a BookingRepo.
func NewBookingRepo(db *sqlx.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

const bookingColumns = `id, tourist_id, guide_id, destination, start_date, end_date, status, post_tour_expiry, created_at`

// GetBooking fetches a booking by id.
func (r *BookingRepo) GetBooking(ctx context.Context, bookingID int) (models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// ApplyStatus records a status change published by the booking subsystem.
// The expiry only moves forward when the event carries one.
func (r *BookingRepo) ApplyStatus(ctx context.Context, bookingID int, status string, postTourExpiry *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status=$2, post_tour_expiry=COALESCE($3, post_tour_expiry) WHERE id=$1`,
		bookingID, status, postTourExpiry)
	return err
}
