package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/messaging"
	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
)

// Listing limits.
const (
	DefaultContactLimit = 100
	DefaultHistoryPage  = 50
	MaxListLimit        = 500
)

// Service backs the dashboard's conversation views and manual sends.
type Service struct {
	repo   store.ConversationRepo
	router *messaging.Router
	now    func() time.Time
}

// NewService creates a Service.
func NewService(repo store.ConversationRepo, router *messaging.Router) *Service {
	return &Service{repo: repo, router: router, now: func() time.Time { return time.Now().UTC() }}
}

func clampLimit(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

// Contacts lists each contact's latest activity, most recent first.
func (s *Service) Contacts(ctx context.Context, limit int) ([]models.Contact, error) {
	contacts, err := s.repo.ListContacts(ctx, clampLimit(limit, DefaultContactLimit))
	if err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return contacts, nil
}

// History returns a contact's most recent messages, oldest first.
func (s *Service) History(ctx context.Context, phone string, limit int) ([]models.ConversationMessage, error) {
	phone, err := messaging.CanonicalizePhone(phone)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.RecentMessages(ctx, phone, clampLimit(limit, DefaultHistoryPage))
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.ConversationMessage{}
	}
	return msgs, nil
}

// ManualSend delivers a dashboard-authored message on whatsapp or sms and
// records it as an assistant turn.
func (s *Service) ManualSend(ctx context.Context, phone string, ch models.Channel, message string) (models.SendResult, error) {
	if ch == "" {
		ch = models.ChannelWhatsApp
	}
	if !ch.IsPhoneChannel() {
		return models.SendResult{}, models.NewValidationError("channel", "must be whatsapp or sms, got %q", ch)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return models.SendResult{}, models.NewValidationError("message", "is required")
	}
	if len(message) > models.MaxTriggerMessageLength {
		return models.SendResult{}, models.NewValidationError("message", "must be at most %d characters", models.MaxTriggerMessageLength)
	}
	phone, err := messaging.CanonicalizePhone(phone)
	if err != nil {
		return models.SendResult{}, err
	}
	res, err := s.router.Send(ctx, ch, phone, message, "")
	if err != nil {
		return models.SendResult{}, fmt.Errorf("manual send: %w", err)
	}
	now := s.now()
	if err := s.repo.AppendMessage(ctx, &models.ConversationMessage{
		PhoneNumber: phone, Role: models.RoleAssistant, Message: message, Channel: ch, CreatedAt: now,
	}); err != nil {
		slog.Error("Service.ManualSend: store conversation failed", "error", err, "phone", phone)
	}
	if err := s.repo.RecordSentMessage(ctx, &models.SentMessage{
		Recipient: phone, Channel: ch, Body: message, Status: models.SentStatusManualSend,
		ExternalID: res.ExternalID, CreatedAt: now,
	}); err != nil {
		slog.Error("Service.ManualSend: record sent message failed", "error", err, "phone", phone)
	}
	slog.Info("Service.ManualSend: message sent", "phone", phone, "channel", ch, "external_id", res.ExternalID)
	return res, nil
}
