package booking

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
)

const testPhone = "919876543210"

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestExecutor(t *testing.T) (*Executor, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	e := NewExecutor(st)
	e.now = func() time.Time { return testNow }
	return e, st
}

func seedBooking(t *testing.T, st store.BookingRepo, phone, code, title string) *models.Booking {
	t.Helper()
	b := &models.Booking{
		PhoneNumber: phone, BookingType: "general", Title: title, Currency: "INR",
		Status: models.BookingStatusPending, ConfirmationCode: code,
		CreatedAt: testNow.Add(-time.Hour), UpdatedAt: testNow.Add(-time.Hour),
	}
	if err := st.CreateBooking(context.Background(), b); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

func TestExecutorConfirmByCode(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()
	b := seedBooking(t, st, testPhone, "AB12CD", "Table for 2")
	other := seedBooking(t, st, testPhone, "ZZ99ZZ", "Other")

	res, err := e.Apply(ctx, testPhone, "ACTION: CONFIRM please confirm AB12CD")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(res.Text, "AB12CD") || !strings.Contains(res.Text, "confirmed!") {
		t.Errorf("unexpected text %q", res.Text)
	}
	got, _ := st.GetBooking(ctx, b.ID)
	if got.Status != models.BookingStatusConfirmed || got.ConfirmedAt == nil || got.CancelledAt != nil {
		t.Errorf("unexpected booking %+v", got)
	}
	untouched, _ := st.GetBooking(ctx, other.ID)
	if untouched.Status != models.BookingStatusPending {
		t.Errorf("other booking should stay pending, got %s", untouched.Status)
	}
}

func TestExecutorConfirmAllPending(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()
	seedBooking(t, st, testPhone, "AAAAA1", "One")
	seedBooking(t, st, testPhone, "AAAAA2", "Two")
	seedBooking(t, st, "15550000000", "BBBBB1", "Someone else")

	res, err := e.Apply(ctx, testPhone, "yes confirm [ACTION: CONFIRM]")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Count != 2 {
		t.Errorf("expected count 2, got %d", res.Count)
	}
	if !strings.Contains(res.Text, "2 booking(s) confirmed successfully!") {
		t.Errorf("unexpected text %q", res.Text)
	}
	pending, _ := st.ListBookings(ctx, models.BookingFilter{Status: models.BookingStatusPending})
	if len(pending) != 1 || pending[0].PhoneNumber != "15550000000" {
		t.Errorf("unexpected remaining pending %+v", pending)
	}
}

func TestExecutorOtherCustomersCodeChangesNothing(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()
	foreign := seedBooking(t, st, "15550000000", "AB12CD", "Not yours")
	mine := seedBooking(t, st, testPhone, "QQ11QQ", "Yours")

	res, err := e.Apply(ctx, testPhone, "ACTION: CONFIRM please confirm AB12CD")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, id := range []int64{foreign.ID, mine.ID} {
		got, _ := st.GetBooking(ctx, id)
		if got.Status != models.BookingStatusPending {
			t.Errorf("booking %s must stay pending, got %s", got.ConfirmationCode, got.Status)
		}
	}
	if res.Count != 0 || res.Booking != nil {
		t.Errorf("expected no booking changed, got %+v", res)
	}
	if !strings.Contains(res.Text, "No booking with code *AB12CD* was found") {
		t.Errorf("unexpected text %q", res.Text)
	}
}

func TestExecutorOwnCodeWinsOverForeignCode(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()
	seedBooking(t, st, "15550000000", "XY12ZW", "Not yours")
	mine := seedBooking(t, st, testPhone, "AB12CD", "Yours")
	other := seedBooking(t, st, testPhone, "QQ11QQ", "Also yours")

	res, err := e.Apply(ctx, testPhone, "[ACTION: CANCEL] cancel XY12ZW and AB12CD")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Booking == nil || res.Booking.ID != mine.ID || res.Count != 1 {
		t.Fatalf("expected only AB12CD cancelled, got %+v", res)
	}
	got, _ := st.GetBooking(ctx, other.ID)
	if got.Status != models.BookingStatusPending {
		t.Errorf("unnamed booking changed to %s", got.Status)
	}
}

func TestExecutorNoPending(t *testing.T) {
	e, _ := newTestExecutor(t)
	res, err := e.Apply(context.Background(), testPhone, "[ACTION: CANCEL]")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(res.Text, "No pending bookings found to cancel.") {
		t.Errorf("unexpected text %q", res.Text)
	}
}

func TestExecutorAlreadyTerminal(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()
	b := seedBooking(t, st, testPhone, "AB12CD", "Table")
	if _, err := st.TransitionBooking(ctx, b.ID, models.BookingStatusCancelled, testNow); err != nil {
		t.Fatal(err)
	}
	res, err := e.Apply(ctx, testPhone, "[ACTION: CONFIRM] AB12CD")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Count != 0 || !strings.Contains(res.Text, "already cancelled") {
		t.Errorf("unexpected result %+v", res)
	}
	got, _ := st.GetBooking(ctx, b.ID)
	if got.Status != models.BookingStatusCancelled || got.ConfirmedAt != nil {
		t.Errorf("terminal booking changed: %+v", got)
	}
}

func TestExecutorCreatePrecedence(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()
	existing := seedBooking(t, st, testPhone, "AB12CD", "Existing")

	res, err := e.Apply(ctx, testPhone, "Booked! [CREATE_BOOKING] [TITLE: Spa day] [AMOUNT: 1500] [ACTION: CONFIRM]")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Kind != CreateBooking || res.Booking == nil {
		t.Fatalf("expected a created booking, got %+v", res)
	}
	all, _ := st.ListBookings(ctx, models.BookingFilter{PhoneNumber: testPhone})
	if len(all) != 2 {
		t.Fatalf("expected exactly one new booking, have %d", len(all))
	}
	got, _ := st.GetBooking(ctx, existing.ID)
	if got.Status != models.BookingStatusPending {
		t.Errorf("no confirmation should happen, got %s", got.Status)
	}
	for _, want := range []string{"📋 *Booking Created*", "📌 Spa day", "₹1,500.00", "*" + res.Booking.ConfirmationCode + "*", "Reply *CONFIRM* to confirm or *CANCEL* to cancel."} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("summary missing %q in %q", want, res.Text)
		}
	}
	if strings.Contains(res.Text, "[") {
		t.Errorf("tags left in reply %q", res.Text)
	}
}

func TestExecutorCreateDefaults(t *testing.T) {
	e, _ := newTestExecutor(t)
	res, err := e.Apply(context.Background(), testPhone, "[CREATE_BOOKING]")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	b := res.Booking
	if b.Title != models.DefaultBookingTitle || b.BookingType != models.DefaultBookingType || b.Amount != nil {
		t.Errorf("unexpected defaults %+v", b)
	}
	if len(b.ConfirmationCode) != models.ConfirmationCodeLength || b.ConfirmationCode != strings.ToUpper(b.ConfirmationCode) {
		t.Errorf("unexpected code %q", b.ConfirmationCode)
	}
}

func TestExecutorStatus(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()
	a := seedBooking(t, st, testPhone, "AAAAA1", "One")
	seedBooking(t, st, testPhone, "AAAAA2", "Two")
	st.TransitionBooking(ctx, a.ID, models.BookingStatusConfirmed, testNow)

	res, err := e.Apply(ctx, testPhone, "Here are your bookings [ACTION: STATUS]")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, want := range []string{"📋 *Your Bookings:*", "✅ *AAAAA1* — One (confirmed)", "⏳ *AAAAA2* — Two (pending)"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("status missing %q in %q", want, res.Text)
		}
	}

	res, _ = e.Apply(ctx, "15550000000", "[ACTION: STATUS]")
	if !strings.Contains(res.Text, "You have no bookings yet.") {
		t.Errorf("unexpected empty status %q", res.Text)
	}
}

func TestExecutorNoAction(t *testing.T) {
	e, _ := newTestExecutor(t)
	res, err := e.Apply(context.Background(), testPhone, "  Just chatting  ")
	if err != nil || res.Kind != NoAction || res.Text != "Just chatting" {
		t.Errorf("unexpected %+v, %v", res, err)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{1234567.5, "INR", "₹1,234,567.50"},
		{10, "usd", "$10.00"},
		{3, "AED", "AED 3.00"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.amount, tt.currency); got != tt.want {
			t.Errorf("FormatAmount(%v, %q) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestPendingContext(t *testing.T) {
	amt := 500.0
	got := PendingContext([]models.Booking{
		{ConfirmationCode: "AB12CD", Title: "Table", Amount: &amt, Currency: "INR", Status: models.BookingStatusPending},
		{ConfirmationCode: "EF34GH", Title: "Cake", Status: models.BookingStatusPending},
	})
	for _, want := range []string{"The customer has 2 pending booking(s)/order(s):", "#AB12CD: Table (₹500.00) [pending]", "#EF34GH: Cake (no amount) [pending]", "act on that one only."} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}
