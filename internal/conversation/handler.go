// Package conversation answers inbound messages: it logs the conversation,
// stops pending follow-ups, asks the model for a reply and applies any booking
// command the reply carries.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/booking"
	"github.com/BTreeMap/SalesPipe/internal/genai"
	"github.com/BTreeMap/SalesPipe/internal/metrics"
	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
)

// Reply settings.
const (
	DefaultHistoryLimit = 10
	StopScopeAll        = "all"
	StopScopeLatest     = "latest"
)

// Repo is the persistence the reply handler needs.
type Repo interface {
	store.ConversationRepo
	store.TriggerRepo
	store.BookingRepo
}

// Opts holds configuration for the ReplyHandler.
type Opts struct {
	HistoryLimit     int
	StopScope        string
	SystemPrompt     string
	SystemPromptFile string
	Now              func() time.Time
}

// Option configures the ReplyHandler.
type Option func(*Opts)

// WithHistoryLimit sets how many past turns are sent to the model.
func WithHistoryLimit(n int) Option {
	return func(o *Opts) { o.HistoryLimit = n }
}

// WithStopScope selects whether a reply completes all stop_on_reply triggers
// ("all") or only the most recent one ("latest").
func WithStopScope(scope string) Option {
	return func(o *Opts) { o.StopScope = scope }
}

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Opts) { o.SystemPrompt = prompt }
}

// WithSystemPromptFile loads the system prompt from a file at construction.
func WithSystemPromptFile(path string) Option {
	return func(o *Opts) { o.SystemPromptFile = path }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// ReplyHandler turns one inbound message into the reply text to deliver.
// It never sends anything itself.
type ReplyHandler struct {
	repo         Repo
	gen          genai.Generator
	executor     *booking.Executor
	historyLimit int
	latestOnly   bool
	systemPrompt string
	now          func() time.Time
}

// NewReplyHandler creates a ReplyHandler. gen may be nil, in which case every
// reply is the fixed fallback.
func NewReplyHandler(repo Repo, gen genai.Generator, opts ...Option) (*ReplyHandler, error) {
	cfg := Opts{
		HistoryLimit: DefaultHistoryLimit,
		StopScope:    StopScopeAll,
		SystemPrompt: DefaultSystemPrompt,
		Now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SystemPromptFile != "" {
		prompt, err := loadSystemPrompt(cfg.SystemPromptFile)
		if err != nil {
			return nil, err
		}
		cfg.SystemPrompt = prompt
	}
	switch cfg.StopScope {
	case StopScopeAll, StopScopeLatest:
	default:
		return nil, fmt.Errorf("unknown reply stop scope %q", cfg.StopScope)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	executor := booking.NewExecutor(repo)
	return &ReplyHandler{
		repo:         repo,
		gen:          gen,
		executor:     executor,
		historyLimit: cfg.HistoryLimit,
		latestOnly:   cfg.StopScope == StopScopeLatest,
		systemPrompt: cfg.SystemPrompt,
		now:          cfg.Now,
	}, nil
}

func loadSystemPrompt(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Error("ReplyHandler.loadSystemPrompt: failed to read system prompt file", "file", path, "error", err)
		return "", fmt.Errorf("failed to read system prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(content))
	if prompt == "" {
		return "", fmt.Errorf("system prompt file %s is empty", path)
	}
	slog.Info("ReplyHandler.loadSystemPrompt: system prompt loaded", "file", path, "length", len(prompt))
	return prompt, nil
}

// HandleReply processes one inbound message from a canonical recipient and
// returns the reply. Persistence and generation failures are logged and a
// fallback reply is produced. The only error returned is the context's, when
// it is already done on entry; nothing is stored in that case.
func (h *ReplyHandler) HandleReply(ctx context.Context, recipient, text string, ch models.Channel) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("handle reply for %s: %w", recipient, err)
	}
	now := h.now()
	log := slog.With("recipient", recipient, "channel", ch)
	log.Info("ReplyHandler.HandleReply: inbound message", "length", len(text))

	if err := h.repo.AppendMessage(ctx, &models.ConversationMessage{
		PhoneNumber: recipient, Role: models.RoleUser, Message: text, Channel: ch, CreatedAt: now,
	}); err != nil {
		log.Error("ReplyHandler.HandleReply: store inbound message failed", "error", err)
	}

	if n, err := h.repo.CompleteTriggersOnReply(ctx, recipient, h.latestOnly, now); err != nil {
		log.Error("ReplyHandler.HandleReply: complete triggers on reply failed", "error", err)
	} else if n > 0 {
		metrics.TriggersCompletedOnReply.Add(float64(n))
		log.Info("ReplyHandler.HandleReply: triggers completed because lead replied", "count", n)
	}

	reply := h.generate(ctx, recipient, text)

	result, err := h.executor.Apply(ctx, recipient, reply)
	if err != nil {
		log.Error("ReplyHandler.HandleReply: booking action failed", "error", err)
	}
	reply = strings.TrimSpace(result.Text)
	if reply == "" {
		reply = genai.FallbackReply
	}

	if err := h.repo.AppendMessage(ctx, &models.ConversationMessage{
		PhoneNumber: recipient, Role: models.RoleAssistant, Message: reply, Channel: ch, CreatedAt: h.now(),
	}); err != nil {
		log.Error("ReplyHandler.HandleReply: store reply failed", "error", err)
	}
	if err := h.repo.RecordSentMessage(ctx, &models.SentMessage{
		Recipient: recipient, Channel: ch, Body: reply, Status: models.SentStatusAutoReply, CreatedAt: h.now(),
	}); err != nil {
		log.Error("ReplyHandler.HandleReply: record sent message failed", "error", err)
	}
	metrics.Replies.WithLabelValues(string(ch)).Inc()
	return reply, nil
}

// generate asks the model for a reply, substituting the fallback on failure.
func (h *ReplyHandler) generate(ctx context.Context, recipient, text string) string {
	if h.gen == nil {
		metrics.GeneratorFallbacks.Inc()
		return genai.FallbackReply
	}
	messages := h.buildContext(ctx, recipient, text)
	reply, err := h.gen.Complete(ctx, messages)
	if err != nil || strings.TrimSpace(reply) == "" {
		slog.Error("ReplyHandler.generate: generation failed, using fallback", "error", err, "recipient", recipient)
		metrics.GeneratorFallbacks.Inc()
		return genai.FallbackReply
	}
	return reply
}

// buildContext assembles the system prompt, the booking and trigger summaries
// and the recent history, oldest first.
func (h *ReplyHandler) buildContext(ctx context.Context, recipient, text string) []genai.Message {
	messages := []genai.Message{{Role: models.RoleSystem, Content: h.systemPrompt}}

	pending, err := h.repo.ListBookings(ctx, models.BookingFilter{PhoneNumber: recipient, Status: models.BookingStatusPending})
	if err != nil {
		slog.Warn("ReplyHandler.buildContext: load pending bookings failed", "error", err)
	} else if len(pending) > 0 {
		messages = append(messages, genai.Message{Role: models.RoleSystem, Content: booking.PendingContext(pending)})
	}

	t, err := h.repo.LatestTriggerForRecipient(ctx, recipient)
	if err != nil {
		slog.Warn("ReplyHandler.buildContext: load trigger context failed", "error", err)
	} else if t != nil {
		messages = append(messages, genai.Message{Role: models.RoleSystem, Content: TriggerContext(t)})
	}

	history, err := h.repo.RecentMessages(ctx, recipient, h.historyLimit)
	if err != nil || len(history) == 0 {
		if err != nil {
			slog.Warn("ReplyHandler.buildContext: load history failed", "error", err)
		}
		return append(messages, genai.Message{Role: models.RoleUser, Content: text})
	}
	for _, m := range history {
		role := m.Role
		if role != models.RoleAssistant {
			role = models.RoleUser
		}
		messages = append(messages, genai.Message{Role: role, Content: m.Message})
	}
	return messages
}
