package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/messaging"
	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
)

// List limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Repo is the persistence the booking service needs.
type Repo interface {
	store.BookingRepo
	store.ConversationRepo
}

// Service implements the explicit booking operations exposed over HTTP.
type Service struct {
	repo   Repo
	router *messaging.Router
	now    func() time.Time
}

// NewService creates a Service. router delivers confirmation requests.
func NewService(repo Repo, router *messaging.Router) *Service {
	return &Service{repo: repo, router: router, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates req and stores a pending booking with a fresh code.
func (s *Service) Create(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	phone, err := messaging.CanonicalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	code, err := NewConfirmationCode(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	now := s.now()
	b := &models.Booking{
		PhoneNumber:      phone,
		CustomerName:     req.CustomerName,
		BookingType:      req.BookingType,
		Title:            req.Title,
		Description:      req.Description,
		Date:             req.Date,
		Time:             req.Time,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Status:           models.BookingStatusPending,
		ConfirmationCode: code,
		Notes:            req.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	slog.Info("Service.Create: booking created", "id", b.ID, "code", b.ConfirmationCode)
	return b, nil
}

// Get returns a booking or models.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("booking %d: %w", id, models.ErrNotFound)
	}
	return b, nil
}

// GetByCode returns the booking with a confirmation code or models.ErrNotFound.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Booking, error) {
	b, err := s.repo.GetBookingByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("booking %s: %w", code, models.ErrNotFound)
	}
	return b, nil
}

// List returns bookings newest first. The limit is clamped to [1, MaxListLimit].
func (s *Service) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	if filter.Status != "" && !models.IsValidBookingStatus(filter.Status) {
		return nil, models.NewValidationError("status", "unknown status %q", filter.Status)
	}
	if filter.PhoneNumber != "" {
		filter.PhoneNumber = messaging.CanonicalPhoneOrRaw(filter.PhoneNumber)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	bookings, err := s.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// Confirm confirms a pending booking. The boolean is false when the booking
// was not pending and nothing changed.
func (s *Service) Confirm(ctx context.Context, id int64) (*models.Booking, bool, error) {
	return s.transition(ctx, id, models.BookingStatusConfirmed)
}

// Cancel cancels a pending booking. The boolean is false when nothing changed.
func (s *Service) Cancel(ctx context.Context, id int64) (*models.Booking, bool, error) {
	return s.transition(ctx, id, models.BookingStatusCancelled)
}

func (s *Service) transition(ctx context.Context, id int64, to models.BookingStatus) (*models.Booking, bool, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, false, err
	}
	changed, err := s.repo.TransitionBooking(ctx, id, to, s.now())
	if err != nil {
		return nil, false, err
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	slog.Debug("Service.transition: booking transition", "id", id, "to", to, "changed", changed)
	return b, changed, nil
}

// SendConfirmation sends the confirmation request for a booking on WhatsApp
// and records it in the conversation and audit logs.
func (s *Service) SendConfirmation(ctx context.Context, id int64) (*models.Booking, models.SendResult, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, models.SendResult{}, err
	}
	body := ConfirmationRequest(b)
	res, err := s.router.Send(ctx, models.ChannelWhatsApp, b.PhoneNumber, body, "")
	if err != nil {
		return b, models.SendResult{}, fmt.Errorf("send confirmation: %w", err)
	}
	now := s.now()
	if err := s.repo.AppendMessage(ctx, &models.ConversationMessage{
		PhoneNumber: b.PhoneNumber, Role: models.RoleAssistant, Message: body,
		Channel: models.ChannelWhatsApp, CreatedAt: now,
	}); err != nil {
		slog.Error("Service.SendConfirmation: store conversation failed", "error", err, "id", id)
	}
	if err := s.repo.RecordSentMessage(ctx, &models.SentMessage{
		Recipient: b.PhoneNumber, Channel: models.ChannelWhatsApp, Body: body,
		Status: models.SentStatusBookingConfirmation, ExternalID: res.ExternalID, CreatedAt: now,
	}); err != nil {
		slog.Error("Service.SendConfirmation: record sent message failed", "error", err, "id", id)
	}
	return b, res, nil
}
