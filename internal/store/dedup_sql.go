package store

import (
	"context"
	"fmt"
	"time"
)

// RecordInbound inserts a dedup record. ON CONFLICT is supported by both
// SQLite and PostgreSQL, so a zero row count means the message was seen before.
func (s *sqlStore) RecordInbound(ctx context.Context, messageID, sender string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO inbound_dedup (message_id, sender, received_at) VALUES (?, ?, ?)
		ON CONFLICT (message_id) DO NOTHING`),
		messageID, sender, now,
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	return n == 1, nil
}

func (s *sqlStore) MarkProcessed(ctx context.Context, messageID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE inbound_dedup SET processed_at = ? WHERE message_id = ?`),
		now, messageID,
	)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}
