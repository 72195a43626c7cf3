// Package models defines the shared data types for SalesPipe: triggers, bookings,
// conversation records, inbound messages and the JSON envelope used by the API.
package models

import (
	"time"
)

// Channel identifies the transport a message travels on.
type Channel string

const (
	// ChannelWhatsApp delivers through the configured WhatsApp provider.
	ChannelWhatsApp Channel = "whatsapp"
	// ChannelSMS delivers through Twilio SMS.
	ChannelSMS Channel = "sms"
	// ChannelEmail delivers through the email provider.
	ChannelEmail Channel = "email"
)

// IsValidChannel reports whether c is a supported channel.
func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelWhatsApp, ChannelSMS, ChannelEmail:
		return true
	}
	return false
}

// IsPhoneChannel reports whether recipients on c are phone numbers.
func (c Channel) IsPhoneChannel() bool {
	return c == ChannelWhatsApp || c == ChannelSMS
}

// InboundMessage is a message received from a contact on any channel.
type InboundMessage struct {
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Channel   Channel   `json:"channel"`
	MessageID string    `json:"message_id,omitempty"`
	Time      time.Time `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusScheduled indicates the request created scheduled work.
	APIStatusScheduled APIStatus = "scheduled"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build returns the assembled APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithResult(result).Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithMessage(message).WithResult(result).Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusError).WithMessage(message).Build()
}

// ScheduledWithResult creates a scheduled API response carrying the created work.
func ScheduledWithResult(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusScheduled).WithMessage(message).WithResult(result).Build()
}

// SendResult is what a channel sender reports for one outbound message.
type SendResult struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}
