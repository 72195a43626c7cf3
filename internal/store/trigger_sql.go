package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// CreateTriggers inserts all triggers in one transaction.
func (s *sqlStore) CreateTriggers(ctx context.Context, triggers ...*models.Trigger) error {
	if len(triggers) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error(s.dialect.String()+" CreateTriggers begin failed", "error", err)
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	query := s.rebind(`INSERT INTO triggers (name, trigger_type, channel, recipient, recipient_name, message, subject,
		delay_minutes, max_retries, retries_done, stop_on_reply, status, campaign_name, step_number,
		scheduled_at, executed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	for _, t := range triggers {
		err := tx.QueryRowContext(ctx, query,
			t.Name, string(t.Type), string(t.Channel), t.Recipient, nilIfEmpty(t.RecipientName), t.Message, nilIfEmpty(t.Subject),
			t.DelayMinutes, t.MaxRetries, t.RetriesDone, t.StopOnReply, string(t.Status), nilIfEmpty(t.CampaignName), t.StepNumber,
			t.ScheduledAt, nilIfNilTime(t.ExecutedAt), t.CreatedAt, t.UpdatedAt,
		).Scan(&t.ID)
		if err != nil {
			slog.Error(s.dialect.String()+" CreateTriggers insert failed", "error", err, "name", t.Name)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error(s.dialect.String()+" CreateTriggers commit failed", "error", err)
		return err
	}
	slog.Debug(s.dialect.String()+" CreateTriggers succeeded", "count", len(triggers))
	return nil
}

// GetTrigger loads a trigger by ID.
func (s *sqlStore) GetTrigger(ctx context.Context, id int64) (*models.Trigger, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+triggerColumns+` FROM triggers WHERE id = ?`), id)
	t, err := scanTrigger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error(s.dialect.String()+" GetTrigger failed", "error", err, "id", id)
		return nil, err
	}
	return &t, nil
}

// ListTriggers returns triggers matching filter, newest first.
func (s *sqlStore) ListTriggers(ctx context.Context, filter models.TriggerFilter) ([]models.Trigger, error) {
	var where []string
	var args []interface{}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CampaignName != "" {
		where = append(where, "campaign_name = ?")
		args = append(args, filter.CampaignName)
	}
	if filter.Recipient != "" {
		where = append(where, "recipient = ?")
		args = append(args, filter.Recipient)
	}
	query := `SELECT ` + triggerColumns + ` FROM triggers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		slog.Error(s.dialect.String()+" ListTriggers failed", "error", err)
		return nil, err
	}
	return collectRows(rows, scanTrigger)
}

// DueTriggers returns active triggers whose scheduled time has passed.
func (s *sqlStore) DueTriggers(ctx context.Context, now time.Time, limit int) ([]models.Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM triggers
		WHERE status = 'active' AND scheduled_at <= ?
		ORDER BY scheduled_at ASC, id ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), now)
	if err != nil {
		slog.Error(s.dialect.String()+" DueTriggers failed", "error", err)
		return nil, err
	}
	return collectRows(rows, scanTrigger)
}

// CompleteTrigger moves an active trigger to completed.
func (s *sqlStore) CompleteTrigger(ctx context.Context, id int64, now time.Time, executed bool) (bool, error) {
	var n int64
	var err error
	if executed {
		n, err = s.execAffected(ctx, s.db, "CompleteTrigger",
			`UPDATE triggers SET status = 'completed', executed_at = ?, updated_at = ? WHERE id = ? AND status = 'active'`,
			now, now, id)
	} else {
		n, err = s.execAffected(ctx, s.db, "CompleteTrigger",
			`UPDATE triggers SET status = 'completed', updated_at = ? WHERE id = ? AND status = 'active'`,
			now, id)
	}
	return n == 1, err
}

// RecordTriggerFailure counts a failed attempt and either reschedules or fails the trigger.
func (s *sqlStore) RecordTriggerFailure(ctx context.Context, id int64, retryAt, now time.Time) (bool, error) {
	n, err := s.execAffected(ctx, s.db, "RecordTriggerFailure",
		`UPDATE triggers SET
			retries_done = retries_done + 1,
			status = CASE WHEN retries_done + 1 >= max_retries THEN 'failed' ELSE 'active' END,
			scheduled_at = CASE WHEN retries_done + 1 >= max_retries THEN scheduled_at ELSE ? END,
			updated_at = ?
		WHERE id = ? AND status = 'active'`,
		retryAt, now, id)
	return n == 1, err
}

// FailTrigger moves an active trigger to failed without counting a retry.
func (s *sqlStore) FailTrigger(ctx context.Context, id int64, now time.Time) (bool, error) {
	n, err := s.execAffected(ctx, s.db, "FailTrigger",
		`UPDATE triggers SET status = 'failed', updated_at = ? WHERE id = ? AND status = 'active'`,
		now, id)
	return n == 1, err
}

// CancelTrigger moves an active or paused trigger to cancelled.
func (s *sqlStore) CancelTrigger(ctx context.Context, id int64, now time.Time) (bool, error) {
	n, err := s.execAffected(ctx, s.db, "CancelTrigger",
		`UPDATE triggers SET status = 'cancelled', updated_at = ? WHERE id = ? AND status IN ('active', 'paused')`,
		now, id)
	return n == 1, err
}

// CancelCampaign cancels the remaining steps of a drip campaign.
func (s *sqlStore) CancelCampaign(ctx context.Context, campaign string, now time.Time) (int64, error) {
	return s.execAffected(ctx, s.db, "CancelCampaign",
		`UPDATE triggers SET status = 'cancelled', updated_at = ? WHERE campaign_name = ? AND status IN ('active', 'paused')`,
		now, campaign)
}

// PauseTrigger moves an active trigger to paused.
func (s *sqlStore) PauseTrigger(ctx context.Context, id int64, now time.Time) (bool, error) {
	n, err := s.execAffected(ctx, s.db, "PauseTrigger",
		`UPDATE triggers SET status = 'paused', updated_at = ? WHERE id = ? AND status = 'active'`,
		now, id)
	return n == 1, err
}

// ResumeTrigger moves a paused trigger to active.
func (s *sqlStore) ResumeTrigger(ctx context.Context, id int64, now time.Time) (bool, error) {
	n, err := s.execAffected(ctx, s.db, "ResumeTrigger",
		`UPDATE triggers SET status = 'active', updated_at = ? WHERE id = ? AND status = 'paused'`,
		now, id)
	return n == 1, err
}

// CompleteTriggersOnReply completes pending stop_on_reply triggers for a recipient.
func (s *sqlStore) CompleteTriggersOnReply(ctx context.Context, recipient string, latestOnly bool, now time.Time) (int64, error) {
	if latestOnly {
		return s.execAffected(ctx, s.db, "CompleteTriggersOnReply",
			`UPDATE triggers SET status = 'completed', updated_at = ?
			WHERE id = (
				SELECT id FROM triggers
				WHERE recipient = ? AND status = 'active' AND stop_on_reply = TRUE
				ORDER BY created_at DESC, id DESC LIMIT 1
			) AND status = 'active'`,
			now, recipient)
	}
	return s.execAffected(ctx, s.db, "CompleteTriggersOnReply",
		`UPDATE triggers SET status = 'completed', updated_at = ?
		WHERE recipient = ? AND status = 'active' AND stop_on_reply = TRUE`,
		now, recipient)
}

// LatestTriggerForRecipient returns the trigger a reply most likely answers.
func (s *sqlStore) LatestTriggerForRecipient(ctx context.Context, recipient string) (*models.Trigger, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+triggerColumns+` FROM triggers
		WHERE recipient = ? AND status IN ('active', 'completed')
		ORDER BY executed_at DESC NULLS LAST, created_at DESC, id DESC LIMIT 1`), recipient)
	t, err := scanTrigger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error(s.dialect.String()+" LatestTriggerForRecipient failed", "error", err)
		return nil, err
	}
	return &t, nil
}
