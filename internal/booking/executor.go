package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/metrics"
	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
	"github.com/BTreeMap/SalesPipe/internal/util"
)

// maxCodeAttempts bounds regeneration when a fresh code collides.
const maxCodeAttempts = 5

// Result reports what an executed command did.
type Result struct {
	Kind Kind
	// Booking is the created or individually transitioned booking.
	Booking *models.Booking
	// Count is the number of bookings changed by a bulk confirm or cancel.
	Count int64
	// Text is the reply with tags removed and the outcome appended. It is
	// always usable, even when Apply returns an error.
	Text string
}

// Executor applies parsed booking commands for one customer.
type Executor struct {
	repo store.BookingRepo
	now  func() time.Time
}

// NewExecutor creates an Executor over repo.
func NewExecutor(repo store.BookingRepo) *Executor {
	return &Executor{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Apply parses reply and executes its command on behalf of phone.
func (e *Executor) Apply(ctx context.Context, phone, reply string) (Result, error) {
	return e.Execute(ctx, phone, Parse(reply))
}

// Execute runs a parsed action. Store failures are returned alongside a
// Result whose Text carries the stripped reply without an outcome line.
func (e *Executor) Execute(ctx context.Context, phone string, act Action) (Result, error) {
	res := Result{Kind: act.Kind, Text: act.Text}
	var err error
	switch act.Kind {
	case NoAction:
		return res, nil
	case CreateBooking:
		err = e.create(ctx, phone, act, &res)
	case ConfirmBooking:
		err = e.transition(ctx, phone, act, models.BookingStatusConfirmed, &res)
	case CancelBooking:
		err = e.transition(ctx, phone, act, models.BookingStatusCancelled, &res)
	case StatusQuery:
		err = e.status(ctx, phone, &res)
	}
	if err != nil {
		slog.Error("Executor.Execute: booking action failed", "error", err, "action", act.Kind.String(), "phone", phone)
		res.Text = act.Text
		return res, err
	}
	metrics.BookingActions.WithLabelValues(act.Kind.String()).Inc()
	return res, nil
}

func (e *Executor) create(ctx context.Context, phone string, act Action, res *Result) error {
	d := act.Details
	if d == nil {
		d = &Details{}
	}
	title := d.Title
	if title == "" {
		title = models.DefaultBookingTitle
	}
	bookingType := d.Type
	if bookingType == "" {
		bookingType = models.DefaultBookingType
	}
	code, err := NewConfirmationCode(ctx, e.repo)
	if err != nil {
		return err
	}
	now := e.now()
	b := &models.Booking{
		PhoneNumber:      phone,
		BookingType:      bookingType,
		Title:            title,
		Date:             d.Date,
		Time:             d.Time,
		Amount:           d.Amount,
		Currency:         models.DefaultBookingCurrency,
		Status:           models.BookingStatusPending,
		ConfirmationCode: code,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.repo.CreateBooking(ctx, b); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	slog.Info("Executor.create: booking created from reply", "code", code, "phone", phone)
	res.Booking = b
	res.Text = act.Text + CreatedSummary(b)
	return nil
}

// resolveCode looks up the candidate codes in order. It returns the first
// booking of phone, or when none belongs to phone, the first code that names
// another customer's booking.
func (e *Executor) resolveCode(ctx context.Context, phone string, codes []string) (*models.Booking, string, error) {
	foreign := ""
	for _, code := range codes {
		b, err := e.repo.GetBookingByCode(ctx, code)
		if err != nil {
			return nil, "", err
		}
		if b == nil {
			continue
		}
		if b.PhoneNumber == phone {
			return b, "", nil
		}
		if foreign == "" {
			foreign = b.ConfirmationCode
		}
	}
	return nil, foreign, nil
}

// transition acts on the booking named by an explicit code, or on every
// pending booking of phone when the reply names none. A code belonging to
// someone else changes nothing.
func (e *Executor) transition(ctx context.Context, phone string, act Action, to models.BookingStatus, res *Result) error {
	now := e.now()
	b, foreign, err := e.resolveCode(ctx, phone, act.Codes)
	if err != nil {
		return fmt.Errorf("look up booking code: %w", err)
	}
	if b != nil {
		changed, err := e.repo.TransitionBooking(ctx, b.ID, to, now)
		if err != nil {
			return fmt.Errorf("transition booking %s: %w", b.ConfirmationCode, err)
		}
		if changed {
			b.Status = to
			b.UpdatedAt = now
			if to == models.BookingStatusConfirmed {
				b.ConfirmedAt = &now
			} else {
				b.CancelledAt = &now
			}
			res.Count = 1
		}
		res.Booking = b
		res.Text = act.Text + codeOutcome(b, to, changed)
		return nil
	}
	if foreign != "" {
		slog.Warn("Executor.transition: code belongs to another customer", "code", foreign, "phone", phone)
		res.Text = act.Text + unknownCodeOutcome(foreign)
		return nil
	}

	n, err := e.repo.TransitionPendingBookings(ctx, phone, to, now)
	if err != nil {
		return fmt.Errorf("transition pending bookings: %w", err)
	}
	res.Count = n
	res.Text = act.Text + bulkOutcome(n, to)
	return nil
}

func codeOutcome(b *models.Booking, to models.BookingStatus, changed bool) string {
	if !changed {
		return fmt.Sprintf("\n\nℹ️ Booking *%s* is already %s.", b.ConfirmationCode, b.Status)
	}
	if to == models.BookingStatusConfirmed {
		return fmt.Sprintf("\n\n✅ Booking *%s* confirmed!", b.ConfirmationCode)
	}
	return fmt.Sprintf("\n\n❌ Booking *%s* has been cancelled.", b.ConfirmationCode)
}

func unknownCodeOutcome(code string) string {
	return fmt.Sprintf("\n\nℹ️ No booking with code *%s* was found for your number.", code)
}

func bulkOutcome(n int64, to models.BookingStatus) string {
	verb := "confirm"
	if to == models.BookingStatusCancelled {
		verb = "cancel"
	}
	if n == 0 {
		return fmt.Sprintf("\n\nℹ️ No pending bookings found to %s.", verb)
	}
	if to == models.BookingStatusConfirmed {
		return fmt.Sprintf("\n\n✅ %d booking(s) confirmed successfully!", n)
	}
	return fmt.Sprintf("\n\n❌ %d booking(s) cancelled.", n)
}

func (e *Executor) status(ctx context.Context, phone string, res *Result) error {
	bookings, err := e.repo.ListBookings(ctx, models.BookingFilter{PhoneNumber: phone, Limit: StatusHistoryLimit})
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	res.Text = strings.TrimSpace(res.Text) + StatusList(bookings)
	return nil
}

// NewConfirmationCode generates a code not yet used by any booking.
func NewConfirmationCode(ctx context.Context, repo store.BookingRepo) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := util.GenerateConfirmationCode(models.ConfirmationCodeLength)
		existing, err := repo.GetBookingByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check confirmation code: %w", err)
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique confirmation code after %d attempts", maxCodeAttempts)
}
