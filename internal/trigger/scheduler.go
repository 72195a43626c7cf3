package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/messaging"
	"github.com/BTreeMap/SalesPipe/internal/metrics"
	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/scheduler"
)

// Scheduler periodically executes due triggers through the channel router.
type Scheduler struct {
	repo         Repo
	router       *messaging.Router
	pollInterval time.Duration
	batchLimit   int
	now          func() time.Time

	// polling guards against overlapping polls.
	polling sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(repo Repo, router *messaging.Router, opts ...Option) *Scheduler {
	cfg := buildOpts(opts)
	return &Scheduler{
		repo:         repo,
		router:       router,
		pollInterval: cfg.PollInterval,
		batchLimit:   cfg.BatchLimit,
		now:          cfg.Now,
	}
}

// Run polls on the configured interval. It blocks until ctx is cancelled and
// waits for an in-flight poll before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Scheduler.Run: starting trigger scheduler", "poll_interval", s.pollInterval, "batch_limit", s.batchLimit)
	cron := scheduler.NewScheduler()
	if err := cron.Every(s.pollInterval, func() { s.PollAndExecute(ctx) }); err != nil {
		cron.Stop()
		return err
	}
	<-ctx.Done()
	cron.Stop()
	slog.Info("Scheduler.Run: stopping")
	return nil
}

// PollAndExecute runs every due trigger once and returns how many it
// processed. A call made while another poll is running returns 0 at once.
func (s *Scheduler) PollAndExecute(ctx context.Context) int {
	if !s.polling.TryLock() {
		slog.Debug("Scheduler.PollAndExecute: previous poll still running, skipping")
		return 0
	}
	defer s.polling.Unlock()
	timer := metrics.StartPollTimer()
	defer timer.ObserveDuration()

	now := s.now()
	due, err := s.repo.DueTriggers(ctx, now, s.batchLimit)
	if err != nil {
		slog.Error("Scheduler.PollAndExecute: load due triggers failed", "error", err)
		return 0
	}
	if len(due) > 0 {
		slog.Debug("Scheduler.PollAndExecute: due triggers", "count", len(due))
	}
	for _, t := range due {
		if ctx.Err() != nil {
			break
		}
		if outcome := s.execute(ctx, t); outcome != "" {
			metrics.RecordTriggerOutcome(outcome)
		}
	}
	return len(due)
}

// execute runs one trigger and returns the metrics outcome, or "" when a
// persistence error left the trigger for the next poll.
func (s *Scheduler) execute(ctx context.Context, t models.Trigger) string {
	now := s.now()
	log := slog.With("trigger_id", t.ID, "channel", t.Channel, "recipient", t.Recipient)

	if t.StopOnReply {
		replied, err := s.repo.HasInboundSince(ctx, t.Recipient, now.Add(-ReplyWindow))
		if err != nil {
			log.Error("Scheduler.execute: reply check failed", "error", err)
			return ""
		}
		if replied {
			moved, err := s.repo.CompleteTrigger(ctx, t.ID, now, false)
			if err != nil {
				log.Error("Scheduler.execute: complete replied trigger failed", "error", err)
				return ""
			}
			if !moved {
				return metrics.OutcomeLostRace
			}
			log.Info("Scheduler.execute: recipient replied, trigger completed without sending")
			return metrics.OutcomeSkippedReplied
		}
	}

	if !s.router.Has(t.Channel) {
		log.Error("Scheduler.execute: no sender for channel, failing trigger")
		if _, err := s.repo.FailTrigger(ctx, t.ID, now); err != nil {
			log.Error("Scheduler.execute: fail trigger failed", "error", err)
			return ""
		}
		return metrics.OutcomeFailed
	}

	subject := t.Subject
	if t.Channel == models.ChannelEmail && subject == "" {
		subject = t.Name
	}
	res, err := s.router.Send(ctx, t.Channel, t.Recipient, t.Message, subject)
	if err != nil {
		return s.recordFailure(ctx, t, now, err)
	}

	if err := s.repo.AppendMessage(ctx, &models.ConversationMessage{
		PhoneNumber: t.Recipient, Role: models.RoleAssistant, Message: t.Message, Channel: t.Channel, CreatedAt: now,
	}); err != nil {
		log.Error("Scheduler.execute: store conversation failed", "error", err)
	}
	if err := s.repo.RecordSentMessage(ctx, &models.SentMessage{
		Recipient: t.Recipient, Channel: t.Channel, Subject: subject, Body: t.Message,
		Status: models.SentStatusTriggered, ExternalID: res.ExternalID, CreatedAt: now,
	}); err != nil {
		log.Error("Scheduler.execute: record sent message failed", "error", err)
	}
	moved, err := s.repo.CompleteTrigger(ctx, t.ID, now, true)
	if err != nil {
		log.Error("Scheduler.execute: complete trigger failed", "error", err)
		return ""
	}
	if !moved {
		log.Warn("Scheduler.execute: trigger changed state while sending")
		return metrics.OutcomeLostRace
	}
	log.Info("Scheduler.execute: trigger sent", "external_id", res.ExternalID)
	return metrics.OutcomeSent
}

func (s *Scheduler) recordFailure(ctx context.Context, t models.Trigger, now time.Time, sendErr error) string {
	log := slog.With("trigger_id", t.ID, "attempt", t.RetriesDone+1, "max_retries", t.MaxRetries)
	log.Error("Scheduler.execute: send failed", "error", sendErr)
	moved, err := s.repo.RecordTriggerFailure(ctx, t.ID, now.Add(RetryBackoff), now)
	if err != nil {
		log.Error("Scheduler.execute: record failure failed", "error", err)
		return ""
	}
	if !moved {
		return metrics.OutcomeLostRace
	}
	if t.RetriesDone+1 >= t.MaxRetries {
		log.Warn("Scheduler.execute: retries exhausted, trigger failed")
		return metrics.OutcomeFailed
	}
	return metrics.OutcomeRetry
}
