package store

import (
	"context"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// ConversationRepo is the append-only conversation log plus the sent-message audit log.
type ConversationRepo interface {
	// AppendMessage inserts a conversation entry and fills in its ID.
	AppendMessage(ctx context.Context, m *models.ConversationMessage) error

	// RecentMessages returns the last limit entries for a phone number, oldest first.
	RecentMessages(ctx context.Context, phone string, limit int) ([]models.ConversationMessage, error)

	// HasInboundSince reports whether the contact sent a message at or after since.
	HasInboundSince(ctx context.Context, phone string, since time.Time) (bool, error)

	// ListContacts returns one summary per phone number, most recently active first.
	ListContacts(ctx context.Context, limit int) ([]models.Contact, error)

	// RecordSentMessage inserts an audit row and fills in its ID.
	RecordSentMessage(ctx context.Context, m *models.SentMessage) error

	// ListSentMessages returns audit rows newest first.
	ListSentMessages(ctx context.Context, limit int) ([]models.SentMessage, error)
}

// AnalyticsRepo aggregates dashboard counters across tables.
type AnalyticsRepo interface {
	Stats(ctx context.Context, now time.Time) (*models.Stats, error)
}
