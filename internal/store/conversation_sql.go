package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// AppendMessage inserts a conversation entry.
func (s *sqlStore) AppendMessage(ctx context.Context, m *models.ConversationMessage) error {
	err := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO conversations (phone_number, role, message, channel, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		m.PhoneNumber, string(m.Role), m.Message, string(m.Channel), m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		slog.Error(s.dialect.String()+" AppendMessage failed", "error", err, "phone", m.PhoneNumber)
		return err
	}
	return nil
}

// RecentMessages returns the newest limit entries for phone in chronological order.
func (s *sqlStore) RecentMessages(ctx context.Context, phone string, limit int) ([]models.ConversationMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM conversations WHERE phone_number = ? ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), phone)
	if err != nil {
		slog.Error(s.dialect.String()+" RecentMessages failed", "error", err)
		return nil, err
	}
	msgs, err := collectRows(rows, scanConversationMessage)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// HasInboundSince reports whether phone sent a message at or after since.
func (s *sqlStore) HasInboundSince(ctx context.Context, phone string, since time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM conversations
		WHERE phone_number = ? AND role = 'user' AND created_at >= ?`), phone, since).Scan(&count)
	if err != nil {
		slog.Error(s.dialect.String()+" HasInboundSince failed", "error", err)
		return false, err
	}
	return count > 0, nil
}

// ListContacts summarizes each phone number by its latest entry.
func (s *sqlStore) ListContacts(ctx context.Context, limit int) ([]models.Contact, error) {
	query := `SELECT c.phone_number, c.message, c.role, c.channel, c.created_at, agg.cnt
		FROM conversations c
		JOIN (SELECT phone_number, MAX(id) AS max_id, COUNT(*) AS cnt FROM conversations GROUP BY phone_number) agg
			ON c.id = agg.max_id
		ORDER BY c.created_at DESC, c.id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error(s.dialect.String()+" ListContacts failed", "error", err)
		return nil, err
	}
	return collectRows(rows, func(row rowScanner) (models.Contact, error) {
		var c models.Contact
		err := row.Scan(&c.PhoneNumber, &c.LastMessage, &c.LastRole, &c.LastChannel, &c.LastMessageAt, &c.MessageCount)
		return c, err
	})
}

// RecordSentMessage inserts an audit row.
func (s *sqlStore) RecordSentMessage(ctx context.Context, m *models.SentMessage) error {
	err := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO sent_messages (recipient, channel, subject, body, status, external_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		m.Recipient, string(m.Channel), nilIfEmpty(m.Subject), m.Body, string(m.Status), nilIfEmpty(m.ExternalID), m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		slog.Error(s.dialect.String()+" RecordSentMessage failed", "error", err, "recipient", m.Recipient)
		return err
	}
	return nil
}

// ListSentMessages returns audit rows newest first.
func (s *sqlStore) ListSentMessages(ctx context.Context, limit int) ([]models.SentMessage, error) {
	query := `SELECT ` + sentMessageColumns + ` FROM sent_messages ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error(s.dialect.String()+" ListSentMessages failed", "error", err)
		return nil, err
	}
	return collectRows(rows, scanSentMessage)
}
