package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// CreateBooking inserts a booking.
func (s *sqlStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	err := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO bookings (phone_number, customer_name, booking_type, title,
		description, booking_date, booking_time, amount, currency, status, confirmation_code, notes,
		created_at, updated_at, confirmed_at, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		b.PhoneNumber, nilIfEmpty(b.CustomerName), b.BookingType, b.Title,
		nilIfEmpty(b.Description), nilIfEmpty(b.Date), nilIfEmpty(b.Time), nilIfNilFloat(b.Amount), b.Currency,
		string(b.Status), b.ConfirmationCode, nilIfEmpty(b.Notes),
		b.CreatedAt, b.UpdatedAt, nilIfNilTime(b.ConfirmedAt), nilIfNilTime(b.CancelledAt),
	).Scan(&b.ID)
	if err != nil {
		slog.Error(s.dialect.String()+" CreateBooking failed", "error", err, "phone", b.PhoneNumber)
		return err
	}
	slog.Debug(s.dialect.String()+" CreateBooking succeeded", "id", b.ID, "code", b.ConfirmationCode)
	return nil
}

// GetBooking loads a booking by ID.
func (s *sqlStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`), id)
	return s.scanOneBooking(row, "GetBooking")
}

// GetBookingByCode loads the newest booking carrying code.
func (s *sqlStore) GetBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+bookingColumns+` FROM bookings
		WHERE confirmation_code = ? ORDER BY created_at DESC, id DESC LIMIT 1`), strings.ToUpper(code))
	return s.scanOneBooking(row, "GetBookingByCode")
}

func (s *sqlStore) scanOneBooking(row *sql.Row, op string) (*models.Booking, error) {
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error(s.dialect.String()+" "+op+" failed", "error", err)
		return nil, err
	}
	return &b, nil
}

// ListBookings returns bookings matching filter, newest first.
func (s *sqlStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var where []string
	var args []interface{}
	if filter.PhoneNumber != "" {
		where = append(where, "phone_number = ?")
		args = append(args, filter.PhoneNumber)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		slog.Error(s.dialect.String()+" ListBookings failed", "error", err)
		return nil, err
	}
	return collectRows(rows, scanBooking)
}

// bookingTransitionSet returns the SET clause for moving a booking to status to.
func bookingTransitionSet(to models.BookingStatus) (string, error) {
	switch to {
	case models.BookingStatusConfirmed:
		return "status = 'confirmed', confirmed_at = ?, updated_at = ?", nil
	case models.BookingStatusCancelled:
		return "status = 'cancelled', cancelled_at = ?, updated_at = ?", nil
	}
	return "", fmt.Errorf("%w: booking cannot move to %q", models.ErrInvalidTransition, to)
}

// TransitionBooking confirms or cancels one pending booking.
func (s *sqlStore) TransitionBooking(ctx context.Context, id int64, to models.BookingStatus, now time.Time) (bool, error) {
	set, err := bookingTransitionSet(to)
	if err != nil {
		return false, err
	}
	n, err := s.execAffected(ctx, s.db, "TransitionBooking",
		`UPDATE bookings SET `+set+` WHERE id = ? AND status = 'pending'`, now, now, id)
	return n == 1, err
}

// TransitionPendingBookings confirms or cancels every pending booking for phone.
func (s *sqlStore) TransitionPendingBookings(ctx context.Context, phone string, to models.BookingStatus, now time.Time) (int64, error) {
	set, err := bookingTransitionSet(to)
	if err != nil {
		return 0, err
	}
	return s.execAffected(ctx, s.db, "TransitionPendingBookings",
		`UPDATE bookings SET `+set+` WHERE phone_number = ? AND status = 'pending'`, now, now, phone)
}
