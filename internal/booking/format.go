package booking

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// StatusHistoryLimit is how many bookings a STATUS reply lists.
const StatusHistoryLimit = 5

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders an amount with digit grouping, e.g. ₹1,250.00.
func FormatAmount(amount float64, currency string) string {
	n := amountPrinter.Sprintf("%.2f", amount)
	switch strings.ToUpper(currency) {
	case "", "INR":
		return "₹" + n
	case "USD":
		return "$" + n
	case "EUR":
		return "€" + n
	case "GBP":
		return "£" + n
	}
	return strings.ToUpper(currency) + " " + n
}

func statusGlyph(s models.BookingStatus) string {
	switch s {
	case models.BookingStatusPending:
		return "⏳"
	case models.BookingStatusConfirmed:
		return "✅"
	}
	return "❌"
}

func writeBookingDetails(sb *strings.Builder, b *models.Booking) {
	fmt.Fprintf(sb, "📌 %s\n", b.Title)
	if b.Date != "" {
		fmt.Fprintf(sb, "📅 Date: %s\n", b.Date)
	}
	if b.Time != "" {
		fmt.Fprintf(sb, "🕐 Time: %s\n", b.Time)
	}
	if b.Amount != nil && *b.Amount > 0 {
		fmt.Fprintf(sb, "💰 Amount: %s\n", FormatAmount(*b.Amount, b.Currency))
	}
	fmt.Fprintf(sb, "🔖 Code: *%s*\n\n", b.ConfirmationCode)
}

// CreatedSummary is appended to a reply after a booking was created from it.
func CreatedSummary(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("\n\n📋 *Booking Created*\n")
	writeBookingDetails(&sb, b)
	sb.WriteString("Reply *CONFIRM* to confirm or *CANCEL* to cancel.")
	return sb.String()
}

// ConfirmationRequest is the standalone message asking a customer to confirm a booking.
func ConfirmationRequest(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("📋 *Booking Confirmation Request*\n\n")
	writeBookingDetails(&sb, b)
	sb.WriteString("Reply *CONFIRM* to confirm or *CANCEL* to cancel this booking.")
	return sb.String()
}

// StatusList renders the STATUS block for bookings, newest first.
func StatusList(bookings []models.Booking) string {
	if len(bookings) == 0 {
		return "\n\nℹ️ You have no bookings yet."
	}
	var sb strings.Builder
	sb.WriteString("\n\n📋 *Your Bookings:*\n")
	for _, b := range bookings {
		fmt.Fprintf(&sb, "%s *%s* — %s (%s)", statusGlyph(b.Status), b.ConfirmationCode, b.Title, b.Status)
		if b.Amount != nil && *b.Amount > 0 {
			sb.WriteString(" " + FormatAmount(*b.Amount, b.Currency))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// PendingContext summarizes pending bookings for the model.
func PendingContext(pending []models.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The customer has %d pending booking(s)/order(s):\n", len(pending))
	for _, b := range pending {
		amount := "no amount"
		if b.Amount != nil {
			amount = FormatAmount(*b.Amount, b.Currency)
		}
		fmt.Fprintf(&sb, "  - #%s: %s (%s) [%s]\n", b.ConfirmationCode, b.Title, amount, b.Status)
	}
	sb.WriteString("\nIf they say CONFIRM/YES, confirm these bookings. ")
	sb.WriteString("If they say CANCEL/NO, cancel them. ")
	sb.WriteString("If they mention a specific confirmation code, act on that one only.")
	return sb.String()
}
