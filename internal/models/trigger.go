package models

import (
	"fmt"
	"strings"
	"time"
)

// TriggerType classifies why a trigger exists. It does not change how it is executed.
type TriggerType string

const (
	TriggerTypeScheduled    TriggerType = "scheduled"
	TriggerTypeFollowUp     TriggerType = "follow_up"
	TriggerTypeNoResponse   TriggerType = "no_response"
	TriggerTypeReEngagement TriggerType = "re_engagement"
	TriggerTypeDrip         TriggerType = "drip"
)

// IsValidTriggerType reports whether t is a known trigger type.
func IsValidTriggerType(t TriggerType) bool {
	switch t {
	case TriggerTypeScheduled, TriggerTypeFollowUp, TriggerTypeNoResponse, TriggerTypeReEngagement, TriggerTypeDrip:
		return true
	}
	return false
}

// TriggerStatus is the lifecycle state of a trigger.
type TriggerStatus string

const (
	TriggerStatusActive    TriggerStatus = "active"
	TriggerStatusPaused    TriggerStatus = "paused"
	TriggerStatusCompleted TriggerStatus = "completed"
	TriggerStatusFailed    TriggerStatus = "failed"
	TriggerStatusCancelled TriggerStatus = "cancelled"
)

// IsTerminal reports whether no transition leaves s.
func (s TriggerStatus) IsTerminal() bool {
	return s == TriggerStatusCompleted || s == TriggerStatusFailed || s == TriggerStatusCancelled
}

// IsValidTriggerStatus reports whether s is a known status.
func IsValidTriggerStatus(s TriggerStatus) bool {
	switch s {
	case TriggerStatusActive, TriggerStatusPaused, TriggerStatusCompleted, TriggerStatusFailed, TriggerStatusCancelled:
		return true
	}
	return false
}

// Trigger limits.
const (
	MinTriggerDelayMinutes = 0
	MaxTriggerDelayMinutes = 43200 // 30 days
	MinTriggerRetries      = 1
	MaxTriggerRetries      = 10

	DefaultTriggerDelayMinutes = 60
	DefaultTriggerMaxRetries   = 3
	DefaultDripDelayMinutes    = 1440
	DripMaxRetries             = 3
	MaxDripMessages            = 10
	MaxTriggerNameLength       = 200
	MaxTriggerMessageLength    = 5000
)

// Trigger is a scheduled, retryable, cancellable unit of outbound delivery.
type Trigger struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Type          TriggerType   `json:"trigger_type"`
	Channel       Channel       `json:"channel"`
	Recipient     string        `json:"recipient"`
	RecipientName string        `json:"recipient_name,omitempty"`
	Message       string        `json:"message"`
	Subject       string        `json:"subject,omitempty"`
	DelayMinutes  int           `json:"delay_minutes"`
	MaxRetries    int           `json:"max_retries"`
	RetriesDone   int           `json:"retries_done"`
	StopOnReply   bool          `json:"stop_on_reply"`
	Status        TriggerStatus `json:"status"`
	CampaignName  string        `json:"campaign_name,omitempty"`
	StepNumber    int           `json:"step_number"`
	ScheduledAt   time.Time     `json:"scheduled_at"`
	ExecutedAt    *time.Time    `json:"executed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TriggerRequest is the input for creating a single trigger.
// Pointer fields distinguish "absent" from zero so defaults can apply.
type TriggerRequest struct {
	Name          string      `json:"name"`
	Type          TriggerType `json:"trigger_type"`
	Channel       Channel     `json:"channel"`
	Recipient     string      `json:"recipient"`
	RecipientName string      `json:"recipient_name,omitempty"`
	Message       string      `json:"message"`
	Subject       string      `json:"subject,omitempty"`
	DelayMinutes  *int        `json:"delay_minutes,omitempty"`
	MaxRetries    *int        `json:"max_retries,omitempty"`
	StopOnReply   *bool       `json:"stop_on_reply,omitempty"`
}

// Normalize fills defaults for absent optional fields.
func (r *TriggerRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Recipient = strings.TrimSpace(r.Recipient)
	r.Channel = Channel(strings.ToLower(string(r.Channel)))
	if r.Type == "" {
		r.Type = TriggerTypeScheduled
	}
	if r.DelayMinutes == nil {
		d := DefaultTriggerDelayMinutes
		r.DelayMinutes = &d
	}
	if r.MaxRetries == nil {
		m := DefaultTriggerMaxRetries
		r.MaxRetries = &m
	}
	if r.StopOnReply == nil {
		s := true
		r.StopOnReply = &s
	}
}

// Validate checks a normalized request.
func (r *TriggerRequest) Validate() error {
	if r.Name == "" {
		return NewValidationError("name", "is required")
	}
	if len(r.Name) > MaxTriggerNameLength {
		return NewValidationError("name", "must be at most %d characters", MaxTriggerNameLength)
	}
	if !IsValidTriggerType(r.Type) {
		return NewValidationError("trigger_type", "unknown type %q", r.Type)
	}
	if !IsValidChannel(r.Channel) {
		return NewValidationError("channel", "unknown channel %q", r.Channel)
	}
	if r.Recipient == "" {
		return NewValidationError("recipient", "is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		return NewValidationError("message", "is required")
	}
	if len(r.Message) > MaxTriggerMessageLength {
		return NewValidationError("message", "must be at most %d characters", MaxTriggerMessageLength)
	}
	if err := ValidateDelayMinutes("delay_minutes", derefInt(r.DelayMinutes)); err != nil {
		return err
	}
	if mr := derefInt(r.MaxRetries); mr < MinTriggerRetries || mr > MaxTriggerRetries {
		return NewValidationError("max_retries", "must be between %d and %d, got %d", MinTriggerRetries, MaxTriggerRetries, mr)
	}
	return nil
}

// ValidateDelayMinutes checks a delay against the allowed window.
func ValidateDelayMinutes(field string, d int) error {
	if d < MinTriggerDelayMinutes || d > MaxTriggerDelayMinutes {
		return NewValidationError(field, "must be between %d and %d minutes, got %d", MinTriggerDelayMinutes, MaxTriggerDelayMinutes, d)
	}
	return nil
}

// DripCampaignRequest creates a named, ordered set of drip triggers.
type DripCampaignRequest struct {
	Name                string   `json:"name"`
	Channel             Channel  `json:"channel"`
	Recipient           string   `json:"recipient"`
	RecipientName       string   `json:"recipient_name,omitempty"`
	SubjectPrefix       string   `json:"subject_prefix,omitempty"`
	Messages            []string `json:"messages"`
	DelayBetweenMinutes *int     `json:"delay_between_minutes,omitempty"`
	StopOnReply         *bool    `json:"stop_on_reply,omitempty"`
}

// Normalize fills defaults for absent optional fields.
func (r *DripCampaignRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Recipient = strings.TrimSpace(r.Recipient)
	r.Channel = Channel(strings.ToLower(string(r.Channel)))
	if r.DelayBetweenMinutes == nil {
		d := DefaultDripDelayMinutes
		r.DelayBetweenMinutes = &d
	}
	if r.StopOnReply == nil {
		s := true
		r.StopOnReply = &s
	}
}

// Validate checks a normalized request, including the delay of the last step.
func (r *DripCampaignRequest) Validate() error {
	if r.Name == "" {
		return NewValidationError("name", "is required")
	}
	if len(r.Name) > MaxTriggerNameLength {
		return NewValidationError("name", "must be at most %d characters", MaxTriggerNameLength)
	}
	if !IsValidChannel(r.Channel) {
		return NewValidationError("channel", "unknown channel %q", r.Channel)
	}
	if r.Recipient == "" {
		return NewValidationError("recipient", "is required")
	}
	if len(r.Messages) == 0 || len(r.Messages) > MaxDripMessages {
		return NewValidationError("messages", "must contain between 1 and %d messages", MaxDripMessages)
	}
	for i, m := range r.Messages {
		if strings.TrimSpace(m) == "" {
			return NewValidationError(fmt.Sprintf("messages[%d]", i), "is empty")
		}
		if len(m) > MaxTriggerMessageLength {
			return NewValidationError(fmt.Sprintf("messages[%d]", i), "must be at most %d characters", MaxTriggerMessageLength)
		}
	}
	delay := derefInt(r.DelayBetweenMinutes)
	if err := ValidateDelayMinutes("delay_between_minutes", delay); err != nil {
		return err
	}
	// The last step is due after len(Messages) times the base delay.
	if delay > MaxTriggerDelayMinutes/len(r.Messages) {
		return NewValidationError("delay_between_minutes", "last step would be due after %d minutes; the maximum is %d",
			delay*len(r.Messages), MaxTriggerDelayMinutes)
	}
	return nil
}

// DripStepName returns the trigger name for a 1-based campaign step.
func DripStepName(campaign string, step int) string {
	return fmt.Sprintf("%s - Step %d", campaign, step)
}

// TriggerFilter narrows trigger listings. Zero values match everything.
type TriggerFilter struct {
	Status       TriggerStatus
	CampaignName string
	Recipient    string
	Limit        int
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
