// Package store provides the DedupRepo interface for inbound message deduplication.
package store

import (
	"context"
	"time"
)

// DedupRecord represents an inbound webhook message seen by the service.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	Sender      string     `json:"sender"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo guards the reply handler against provider webhook redelivery.
type DedupRepo interface {
	// RecordInbound inserts a record for messageID. It returns false when the
	// message was already recorded.
	RecordInbound(ctx context.Context, messageID, sender string, now time.Time) (bool, error)

	// MarkProcessed stamps processed_at for a message.
	MarkProcessed(ctx context.Context, messageID string, now time.Time) error
}
