package store

import (
	"context"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// BookingRepo persists bookings. Transitions only apply to pending bookings.
type BookingRepo interface {
	// CreateBooking inserts a booking and fills in its ID.
	CreateBooking(ctx context.Context, b *models.Booking) error

	// GetBooking returns nil, nil when the booking does not exist.
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)

	// GetBookingByCode returns the most recent booking with the code, or nil.
	GetBookingByCode(ctx context.Context, code string) (*models.Booking, error)

	// ListBookings returns bookings newest first.
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)

	// TransitionBooking moves a pending booking to confirmed or cancelled and
	// stamps the matching timestamp.
	TransitionBooking(ctx context.Context, id int64, to models.BookingStatus, now time.Time) (bool, error)

	// TransitionPendingBookings moves every pending booking of a phone number
	// in one statement and returns how many changed.
	TransitionPendingBookings(ctx context.Context, phone string, to models.BookingStatus, now time.Time) (int64, error)
}
