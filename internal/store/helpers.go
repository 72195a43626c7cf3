package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nilIfNilTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nilIfNilFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const triggerColumns = `id, name, trigger_type, channel, recipient, recipient_name, message, subject,
	delay_minutes, max_retries, retries_done, stop_on_reply, status, campaign_name, step_number,
	scheduled_at, executed_at, created_at, updated_at`

// scanTrigger scans a Trigger in triggerColumns order.
func scanTrigger(row rowScanner) (models.Trigger, error) {
	var t models.Trigger
	var recipientName, subject, campaign sql.NullString
	var executedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.Name, &t.Type, &t.Channel, &t.Recipient, &recipientName, &t.Message, &subject,
		&t.DelayMinutes, &t.MaxRetries, &t.RetriesDone, &t.StopOnReply, &t.Status, &campaign, &t.StepNumber,
		&t.ScheduledAt, &executedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}
	t.RecipientName = recipientName.String
	t.Subject = subject.String
	t.CampaignName = campaign.String
	t.ExecutedAt = timePtr(executedAt)
	return t, nil
}

const bookingColumns = `id, phone_number, customer_name, booking_type, title, description, booking_date, booking_time,
	amount, currency, status, confirmation_code, notes, created_at, updated_at, confirmed_at, cancelled_at`

// scanBooking scans a Booking in bookingColumns order.
func scanBooking(row rowScanner) (models.Booking, error) {
	var b models.Booking
	var customer, description, date, tm, notes sql.NullString
	var amount sql.NullFloat64
	var confirmedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.PhoneNumber, &customer, &b.BookingType, &b.Title, &description, &date, &tm,
		&amount, &b.Currency, &b.Status, &b.ConfirmationCode, &notes, &b.CreatedAt, &b.UpdatedAt,
		&confirmedAt, &cancelledAt,
	)
	if err != nil {
		return b, err
	}
	b.CustomerName = customer.String
	b.Description = description.String
	b.Date = date.String
	b.Time = tm.String
	b.Notes = notes.String
	if amount.Valid {
		v := amount.Float64
		b.Amount = &v
	}
	b.ConfirmedAt = timePtr(confirmedAt)
	b.CancelledAt = timePtr(cancelledAt)
	return b, nil
}

const messageColumns = `id, phone_number, role, message, channel, created_at`

func scanConversationMessage(row rowScanner) (models.ConversationMessage, error) {
	var m models.ConversationMessage
	err := row.Scan(&m.ID, &m.PhoneNumber, &m.Role, &m.Message, &m.Channel, &m.CreatedAt)
	return m, err
}

const sentMessageColumns = `id, recipient, channel, subject, body, status, external_id, created_at`

func scanSentMessage(row rowScanner) (models.SentMessage, error) {
	var m models.SentMessage
	var subject, externalID sql.NullString
	err := row.Scan(&m.ID, &m.Recipient, &m.Channel, &subject, &m.Body, &m.Status, &externalID, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	m.Subject = subject.String
	m.ExternalID = externalID.String
	return m, nil
}

// collectRows drains rows with scan and closes them.
func collectRows[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row failed: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows failed: %w", err)
	}
	return out, nil
}
