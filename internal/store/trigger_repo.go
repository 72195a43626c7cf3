// Package store provides the TriggerRepo interface for durable trigger scheduling.
package store

import (
	"context"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// TriggerRepo persists triggers. Every status change is a single conditional
// update; the boolean or count results report how many rows actually moved so
// callers can detect a lost race.
type TriggerRepo interface {
	// CreateTriggers inserts triggers atomically and fills in their IDs.
	CreateTriggers(ctx context.Context, triggers ...*models.Trigger) error

	// GetTrigger returns nil, nil when the trigger does not exist.
	GetTrigger(ctx context.Context, id int64) (*models.Trigger, error)

	// ListTriggers returns triggers newest first.
	ListTriggers(ctx context.Context, filter models.TriggerFilter) ([]models.Trigger, error)

	// DueTriggers returns active triggers with scheduled_at <= now, oldest first.
	// A limit <= 0 returns all of them.
	DueTriggers(ctx context.Context, now time.Time, limit int) ([]models.Trigger, error)

	// CompleteTrigger moves an active trigger to completed. When executed is
	// true executed_at is set to now.
	CompleteTrigger(ctx context.Context, id int64, now time.Time, executed bool) (bool, error)

	// RecordTriggerFailure increments retries_done on an active trigger. The
	// trigger becomes failed once retries_done reaches max_retries, otherwise
	// it stays active and is rescheduled to retryAt.
	RecordTriggerFailure(ctx context.Context, id int64, retryAt, now time.Time) (bool, error)

	// FailTrigger moves an active trigger straight to failed.
	FailTrigger(ctx context.Context, id int64, now time.Time) (bool, error)

	// CancelTrigger moves an active or paused trigger to cancelled.
	CancelTrigger(ctx context.Context, id int64, now time.Time) (bool, error)

	// CancelCampaign cancels every active or paused trigger of a campaign.
	CancelCampaign(ctx context.Context, campaign string, now time.Time) (int64, error)

	// PauseTrigger moves an active trigger to paused.
	PauseTrigger(ctx context.Context, id int64, now time.Time) (bool, error)

	// ResumeTrigger moves a paused trigger back to active.
	ResumeTrigger(ctx context.Context, id int64, now time.Time) (bool, error)

	// CompleteTriggersOnReply completes active stop_on_reply triggers for a
	// recipient. With latestOnly only the most recently created one is touched.
	CompleteTriggersOnReply(ctx context.Context, recipient string, latestOnly bool, now time.Time) (int64, error)

	// LatestTriggerForRecipient returns the most recent active or completed
	// trigger for a recipient, or nil.
	LatestTriggerForRecipient(ctx context.Context, recipient string) (*models.Trigger, error)
}
