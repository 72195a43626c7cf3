package models

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestTriggerRequest_NormalizeDefaults(t *testing.T) {
	r := TriggerRequest{Name: " Follow up ", Channel: "WhatsApp", Recipient: "+15551234567", Message: "hi"}
	r.Normalize()

	if r.Name != "Follow up" {
		t.Errorf("expected trimmed name, got %q", r.Name)
	}
	if r.Channel != ChannelWhatsApp {
		t.Errorf("expected lower-cased channel, got %q", r.Channel)
	}
	if r.Type != TriggerTypeScheduled {
		t.Errorf("expected default type scheduled, got %q", r.Type)
	}
	if *r.DelayMinutes != DefaultTriggerDelayMinutes || *r.MaxRetries != DefaultTriggerMaxRetries || !*r.StopOnReply {
		t.Errorf("unexpected defaults: delay=%d retries=%d stop=%v", *r.DelayMinutes, *r.MaxRetries, *r.StopOnReply)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestTriggerRequest_ValidateBounds(t *testing.T) {
	tests := []struct {
		name    string
		delay   int
		retries int
		field   string
	}{
		{"delay zero ok", 0, 1, ""},
		{"delay max ok", MaxTriggerDelayMinutes, 10, ""},
		{"delay negative", -1, 3, "delay_minutes"},
		{"delay too large", MaxTriggerDelayMinutes + 1, 3, "delay_minutes"},
		{"retries zero", 10, 0, "max_retries"},
		{"retries too many", 10, 11, "max_retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := TriggerRequest{Name: "n", Channel: ChannelSMS, Recipient: "123456", Message: "m",
				DelayMinutes: intPtr(tt.delay), MaxRetries: intPtr(tt.retries)}
			r.Normalize()
			err := r.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestTriggerRequest_RejectsUnknownChannel(t *testing.T) {
	r := TriggerRequest{Name: "n", Channel: "fax", Recipient: "123456", Message: "m"}
	r.Normalize()
	if err := r.Validate(); !IsValidationError(err) {
		t.Fatalf("expected validation error for unknown channel, got %v", err)
	}
}

func TestDripCampaignRequest_LastStepDelayBounded(t *testing.T) {
	r := DripCampaignRequest{
		Name: "Spring", Channel: ChannelEmail, Recipient: "a@b.co",
		Messages:            []string{"one", "two", "three"},
		DelayBetweenMinutes: intPtr(MaxTriggerDelayMinutes / 2),
	}
	r.Normalize()
	if err := r.Validate(); !IsValidationError(err) {
		t.Fatalf("expected last step delay to be rejected, got %v", err)
	}

	r.DelayBetweenMinutes = intPtr(60)
	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid campaign, got %v", err)
	}
}

func TestDripCampaignRequest_HugeDelayRejected(t *testing.T) {
	msgs := make([]string, MaxDripMessages)
	for i := range msgs {
		msgs[i] = "step"
	}
	for _, delay := range []int{1844674407370955162, int(^uint(0) >> 1), -1} {
		r := DripCampaignRequest{
			Name: "Overflow", Channel: ChannelSMS, Recipient: "123456",
			Messages: msgs, DelayBetweenMinutes: intPtr(delay),
		}
		r.Normalize()
		if err := r.Validate(); !IsValidationError(err) {
			t.Errorf("delay %d: expected validation error, got %v", delay, err)
		}
	}
}

func TestDripCampaignRequest_DelayAtLimit(t *testing.T) {
	r := DripCampaignRequest{
		Name: "Edge", Channel: ChannelSMS, Recipient: "123456",
		Messages:            []string{"one", "two", "three"},
		DelayBetweenMinutes: intPtr(MaxTriggerDelayMinutes / 3),
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		t.Fatalf("expected last step exactly at the limit to pass, got %v", err)
	}
}

func TestDripCampaignRequest_MessageCount(t *testing.T) {
	r := DripCampaignRequest{Name: "x", Channel: ChannelSMS, Recipient: "123456"}
	r.Normalize()
	if err := r.Validate(); !IsValidationError(err) {
		t.Fatalf("expected error for empty messages, got %v", err)
	}
	r.Messages = make([]string, MaxDripMessages+1)
	for i := range r.Messages {
		r.Messages[i] = "m"
	}
	if err := r.Validate(); !IsValidationError(err) {
		t.Fatalf("expected error for too many messages, got %v", err)
	}
}

func TestTriggerStatus_IsTerminal(t *testing.T) {
	for _, s := range []TriggerStatus{TriggerStatusCompleted, TriggerStatusFailed, TriggerStatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	for _, s := range []TriggerStatus{TriggerStatusActive, TriggerStatusPaused} {
		if s.IsTerminal() {
			t.Errorf("expected %q to be non-terminal", s)
		}
	}
}

func TestBookingRequest_Defaults(t *testing.T) {
	r := BookingRequest{PhoneNumber: "919876543210", Title: "Table for 2"}
	r.Normalize()
	if r.BookingType != DefaultBookingType || r.Currency != DefaultBookingCurrency {
		t.Errorf("unexpected defaults: type=%q currency=%q", r.BookingType, r.Currency)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid booking, got %v", err)
	}
	neg := -5.0
	r.Amount = &neg
	if err := r.Validate(); !IsValidationError(err) {
		t.Errorf("expected negative amount to be rejected, got %v", err)
	}
}

func TestDripStepName(t *testing.T) {
	if got := DripStepName("Onboarding", 2); got != "Onboarding - Step 2" {
		t.Errorf("unexpected step name %q", got)
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	if r := Error("bad"); r.Status != "error" || r.Message != "bad" {
		t.Errorf("unexpected error response %+v", r)
	}
	if r := Success(1); r.Status != "ok" || r.Result != 1 {
		t.Errorf("unexpected success response %+v", r)
	}
}
