package models

import (
	"strings"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsValidBookingStatus reports whether s is a known status.
func IsValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

const (
	DefaultBookingTitle    = "New Booking"
	DefaultBookingType     = "general"
	DefaultBookingCurrency = "INR"
	ConfirmationCodeLength = 6
	MaxBookingTitleLength  = 200
	MaxBookingTypeLength   = 50
	MaxCurrencyLength      = 5
)

// Booking is an order or reservation referenced in conversation by its confirmation code.
type Booking struct {
	ID               int64         `json:"id"`
	PhoneNumber      string        `json:"phone_number"`
	CustomerName     string        `json:"customer_name,omitempty"`
	BookingType      string        `json:"booking_type"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	Date             string        `json:"date,omitempty"`
	Time             string        `json:"time,omitempty"`
	Amount           *float64      `json:"amount,omitempty"`
	Currency         string        `json:"currency"`
	Status           BookingStatus `json:"status"`
	ConfirmationCode string        `json:"confirmation_code"`
	Notes            string        `json:"notes,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	ConfirmedAt      *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
}

// BookingRequest is the input for creating a booking explicitly.
type BookingRequest struct {
	PhoneNumber  string   `json:"phone_number"`
	Title        string   `json:"title"`
	BookingType  string   `json:"booking_type,omitempty"`
	CustomerName string   `json:"customer_name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Date         string   `json:"date,omitempty"`
	Time         string   `json:"time,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// Normalize trims fields and applies defaults.
func (r *BookingRequest) Normalize() {
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Title = strings.TrimSpace(r.Title)
	r.BookingType = strings.TrimSpace(r.BookingType)
	if r.BookingType == "" {
		r.BookingType = DefaultBookingType
	}
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = DefaultBookingCurrency
	}
}

// Validate checks a normalized request.
func (r *BookingRequest) Validate() error {
	if r.PhoneNumber == "" {
		return NewValidationError("phone_number", "is required")
	}
	if r.Title == "" {
		return NewValidationError("title", "is required")
	}
	if len(r.Title) > MaxBookingTitleLength {
		return NewValidationError("title", "must be at most %d characters", MaxBookingTitleLength)
	}
	if len(r.BookingType) > MaxBookingTypeLength {
		return NewValidationError("booking_type", "must be at most %d characters", MaxBookingTypeLength)
	}
	if len(r.Currency) > MaxCurrencyLength {
		return NewValidationError("currency", "must be at most %d characters", MaxCurrencyLength)
	}
	if r.Amount != nil && *r.Amount < 0 {
		return NewValidationError("amount", "must not be negative")
	}
	return nil
}

// BookingFilter narrows booking listings. Zero values match everything.
type BookingFilter struct {
	PhoneNumber string
	Status      BookingStatus
	Limit       int
}
