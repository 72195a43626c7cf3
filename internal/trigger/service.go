// Package trigger schedules deferred outbound messages, groups them into drip
// campaigns and executes them when due.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/genai"
	"github.com/BTreeMap/SalesPipe/internal/messaging"
	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
)

// Repo is the persistence the trigger package needs.
type Repo interface {
	store.TriggerRepo
	store.ConversationRepo
}

// Service creates and manages triggers on behalf of API callers.
type Service struct {
	repo    Repo
	router  *messaging.Router
	gen     genai.Generator
	sendAck bool
	now     func() time.Time
}

// NewService creates a Service. gen may be nil, in which case acknowledgements
// use the fixed fallback text.
func NewService(repo Repo, router *messaging.Router, gen genai.Generator, opts ...Option) *Service {
	cfg := buildOpts(opts)
	return &Service{repo: repo, router: router, gen: gen, sendAck: cfg.SendAck, now: cfg.Now}
}

// Create validates req, stores an active trigger and sends the acknowledgement.
func (s *Service) Create(ctx context.Context, req models.TriggerRequest) (*models.Trigger, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	recipient, err := messaging.CanonicalizeRecipient(req.Channel, req.Recipient)
	if err != nil {
		return nil, err
	}
	now := s.now()
	delay := *req.DelayMinutes
	t := &models.Trigger{
		Name:          req.Name,
		Type:          req.Type,
		Channel:       req.Channel,
		Recipient:     recipient,
		RecipientName: strings.TrimSpace(req.RecipientName),
		Message:       req.Message,
		Subject:       strings.TrimSpace(req.Subject),
		DelayMinutes:  delay,
		MaxRetries:    *req.MaxRetries,
		StopOnReply:   *req.StopOnReply,
		Status:        models.TriggerStatusActive,
		ScheduledAt:   now.Add(time.Duration(delay) * time.Minute),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateTriggers(ctx, t); err != nil {
		return nil, fmt.Errorf("create trigger: %w", err)
	}
	slog.Info("Service.Create: trigger created", "trigger_id", t.ID, "name", t.Name, "scheduled_at", t.ScheduledAt)
	s.acknowledge(ctx, t.Channel, t.Recipient, t.Message, t.Subject)
	return t, nil
}

// CreateDripCampaign stores one drip trigger per message in a single
// transaction. Step N is due after N times the base delay.
func (s *Service) CreateDripCampaign(ctx context.Context, req models.DripCampaignRequest) ([]models.Trigger, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	recipient, err := messaging.CanonicalizeRecipient(req.Channel, req.Recipient)
	if err != nil {
		return nil, err
	}
	now := s.now()
	base := *req.DelayBetweenMinutes
	prefix := strings.TrimSpace(req.SubjectPrefix)
	steps := make([]*models.Trigger, 0, len(req.Messages))
	for i, msg := range req.Messages {
		step := i + 1
		delay := base * step
		t := &models.Trigger{
			Name:          models.DripStepName(req.Name, step),
			Type:          models.TriggerTypeDrip,
			Channel:       req.Channel,
			Recipient:     recipient,
			RecipientName: strings.TrimSpace(req.RecipientName),
			Message:       msg,
			DelayMinutes:  delay,
			MaxRetries:    models.DripMaxRetries,
			StopOnReply:   *req.StopOnReply,
			Status:        models.TriggerStatusActive,
			CampaignName:  req.Name,
			StepNumber:    step,
			ScheduledAt:   now.Add(time.Duration(delay) * time.Minute),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if prefix != "" {
			t.Subject = fmt.Sprintf("%s - Step %d", prefix, step)
		}
		steps = append(steps, t)
	}
	if err := s.repo.CreateTriggers(ctx, steps...); err != nil {
		return nil, fmt.Errorf("create drip campaign: %w", err)
	}
	slog.Info("Service.CreateDripCampaign: campaign created", "campaign", req.Name, "steps", len(steps))
	s.acknowledge(ctx, req.Channel, recipient, steps[0].Message, steps[0].Subject)

	out := make([]models.Trigger, len(steps))
	for i, t := range steps {
		out[i] = *t
	}
	return out, nil
}

// acknowledge generates and sends the opening message. Failures are logged
// and never undo the created trigger.
func (s *Service) acknowledge(ctx context.Context, ch models.Channel, recipient, message, subject string) {
	if !s.sendAck {
		return
	}
	body := genai.FallbackReply
	if s.gen != nil {
		reply, err := s.gen.Complete(ctx, []genai.Message{
			{Role: models.RoleSystem, Content: AckSystemPrompt},
			{Role: models.RoleUser, Content: message},
		})
		switch {
		case err != nil:
			slog.Warn("Service.acknowledge: generation failed, using fallback", "error", err)
		case strings.TrimSpace(reply) == "":
			slog.Warn("Service.acknowledge: empty generation, using fallback")
		default:
			body = strings.TrimSpace(reply)
		}
	}
	res, err := s.router.Send(ctx, ch, recipient, body, subject)
	if err != nil {
		slog.Error("Service.acknowledge: send failed", "error", err, "channel", ch, "recipient", recipient)
		return
	}
	now := s.now()
	if err := s.repo.AppendMessage(ctx, &models.ConversationMessage{
		PhoneNumber: recipient, Role: models.RoleAssistant, Message: body, Channel: ch, CreatedAt: now,
	}); err != nil {
		slog.Error("Service.acknowledge: store conversation failed", "error", err)
	}
	if err := s.repo.RecordSentMessage(ctx, &models.SentMessage{
		Recipient: recipient, Channel: ch, Subject: subject, Body: body,
		Status: models.SentStatusAcknowledgement, ExternalID: res.ExternalID, CreatedAt: now,
	}); err != nil {
		slog.Error("Service.acknowledge: record sent message failed", "error", err)
	}
}

// Get returns a trigger or models.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*models.Trigger, error) {
	t, err := s.repo.GetTrigger(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("trigger %d: %w", id, models.ErrNotFound)
	}
	return t, nil
}

// List returns triggers newest first.
func (s *Service) List(ctx context.Context, filter models.TriggerFilter) ([]models.Trigger, error) {
	if filter.Status != "" && !models.IsValidTriggerStatus(filter.Status) {
		return nil, models.NewValidationError("status", "unknown status %q", filter.Status)
	}
	if filter.Recipient != "" {
		filter.Recipient = canonicalFilterRecipient(filter.Recipient)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	triggers, err := s.repo.ListTriggers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if triggers == nil {
		triggers = []models.Trigger{}
	}
	return triggers, nil
}

func canonicalFilterRecipient(r string) string {
	r = strings.TrimSpace(r)
	if strings.Contains(r, "@") {
		return strings.ToLower(r)
	}
	return messaging.CanonicalPhoneOrRaw(r)
}

// Cancel moves a trigger to cancelled. Cancelling a terminal trigger is a
// successful no-op; the boolean reports whether anything changed.
func (s *Service) Cancel(ctx context.Context, id int64) (*models.Trigger, bool, error) {
	return s.move(ctx, id, "cancel", s.repo.CancelTrigger)
}

// Pause moves an active trigger to paused so the scheduler skips it.
func (s *Service) Pause(ctx context.Context, id int64) (*models.Trigger, bool, error) {
	return s.move(ctx, id, "pause", s.repo.PauseTrigger)
}

// Resume moves a paused trigger back to active.
func (s *Service) Resume(ctx context.Context, id int64) (*models.Trigger, bool, error) {
	return s.move(ctx, id, "resume", s.repo.ResumeTrigger)
}

func (s *Service) move(ctx context.Context, id int64, op string, fn func(context.Context, int64, time.Time) (bool, error)) (*models.Trigger, bool, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, false, err
	}
	changed, err := fn(ctx, id, s.now())
	if err != nil {
		return nil, false, fmt.Errorf("%s trigger %d: %w", op, id, err)
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	slog.Info("Service.move: trigger transition", "op", op, "trigger_id", id, "changed", changed, "status", t.Status)
	return t, changed, nil
}

// CancelCampaign cancels every non-terminal step of a campaign and returns
// how many changed. Repeating it is a no-op.
func (s *Service) CancelCampaign(ctx context.Context, campaign string) (int64, error) {
	campaign = strings.TrimSpace(campaign)
	if campaign == "" {
		return 0, models.NewValidationError("campaign_name", "is required")
	}
	n, err := s.repo.CancelCampaign(ctx, campaign, s.now())
	if err != nil {
		return 0, fmt.Errorf("cancel campaign %q: %w", campaign, err)
	}
	slog.Info("Service.CancelCampaign: campaign cancelled", "campaign", campaign, "count", n)
	return n, nil
}
