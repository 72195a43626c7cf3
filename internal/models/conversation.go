package models

import "time"

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationMessage is one append-only entry in a contact's conversation log.
type ConversationMessage struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Role        Role      `json:"role"`
	Message     string    `json:"message"`
	Channel     Channel   `json:"channel"`
	CreatedAt   time.Time `json:"created_at"`
}

// SentMessageStatus records which path produced an outbound message.
type SentMessageStatus string

const (
	SentStatusTriggered           SentMessageStatus = "triggered"
	SentStatusAutoReply           SentMessageStatus = "auto_reply"
	SentStatusAcknowledgement     SentMessageStatus = "acknowledgement"
	SentStatusManualSend          SentMessageStatus = "manual_send"
	SentStatusBookingConfirmation SentMessageStatus = "booking_confirmation"
)

// SentMessage is an audit row for an outbound message. Duplicate rows for the
// same delivery are acceptable.
type SentMessage struct {
	ID         int64             `json:"id"`
	Recipient  string            `json:"recipient"`
	Channel    Channel           `json:"channel"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	Status     SentMessageStatus `json:"status"`
	ExternalID string            `json:"external_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Contact summarizes a conversation partner derived from the conversation log.
type Contact struct {
	PhoneNumber   string    `json:"phone_number"`
	LastMessage   string    `json:"last_message"`
	LastRole      Role      `json:"last_role"`
	LastChannel   Channel   `json:"last_channel"`
	MessageCount  int       `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// DailyCount is a per-day aggregate.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Stats is the dashboard overview.
type Stats struct {
	TotalSent         int            `json:"total_sent"`
	SentToday         int            `json:"sent_today"`
	ActiveTriggers    int            `json:"active_triggers"`
	TotalTriggers     int            `json:"total_triggers"`
	PendingBookings   int            `json:"pending_bookings"`
	ConfirmedBookings int            `json:"confirmed_bookings"`
	TotalBookings     int            `json:"total_bookings"`
	TotalContacts     int            `json:"total_contacts"`
	TotalMessages     int            `json:"total_messages"`
	ByChannel         map[string]int `json:"by_channel"`
	SentLast7Days     []DailyCount   `json:"sent_last_7_days"`
}
