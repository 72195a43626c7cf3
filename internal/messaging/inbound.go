package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
)

// InboundSource emits inbound messages from a push-style provider.
type InboundSource interface {
	Incoming() <-chan models.InboundMessage
}

// ReplyHandler turns one inbound message into reply text.
type ReplyHandler interface {
	HandleReply(ctx context.Context, recipient, text string, ch models.Channel) (string, error)
}

// InboundLoop consumes a provider's inbound messages, runs the reply handler
// and sends the reply back on the same channel. Webhook providers answer
// inline instead and do not use it.
type InboundLoop struct {
	source  InboundSource
	handler ReplyHandler
	router  *Router
	dedup   store.DedupRepo
	now     func() time.Time
}

// NewInboundLoop creates an InboundLoop. dedup may be nil.
func NewInboundLoop(source InboundSource, handler ReplyHandler, router *Router, dedup store.DedupRepo) *InboundLoop {
	return &InboundLoop{
		source:  source,
		handler: handler,
		router:  router,
		dedup:   dedup,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start processes messages in a goroutine until ctx is done or the source closes.
func (l *InboundLoop) Start(ctx context.Context) {
	slog.Info("InboundLoop starting inbound processing")
	go func() {
		defer slog.Info("InboundLoop stopped inbound processing")
		for {
			select {
			case msg, ok := <-l.source.Incoming():
				if !ok {
					slog.Debug("InboundLoop source channel closed")
					return
				}
				if err := l.Process(ctx, msg); err != nil {
					slog.Error("InboundLoop failed to process message", "error", err, "from", msg.From)
				}
			case <-ctx.Done():
				slog.Debug("InboundLoop stopping due to context cancellation")
				return
			}
		}
	}()
}

// Process handles one inbound message end to end.
func (l *InboundLoop) Process(ctx context.Context, msg models.InboundMessage) error {
	if strings.TrimSpace(msg.Body) == "" {
		slog.Debug("InboundLoop.Process: ignoring empty message", "from", msg.From)
		return nil
	}
	recipient, err := CanonicalizeRecipient(msg.Channel, msg.From)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if l.dedup != nil && msg.MessageID != "" {
		fresh, err := l.dedup.RecordInbound(ctx, msg.MessageID, recipient, l.now())
		if err != nil {
			slog.Warn("InboundLoop.Process: dedup check failed, processing anyway", "error", err, "message_id", msg.MessageID)
		} else if !fresh {
			slog.Info("InboundLoop.Process: duplicate message skipped", "message_id", msg.MessageID)
			return nil
		}
	}

	reply, err := l.handler.HandleReply(ctx, recipient, msg.Body, msg.Channel)
	if err != nil {
		return fmt.Errorf("reply handler failed: %w", err)
	}
	if _, err := l.router.Send(ctx, msg.Channel, recipient, reply, ""); err != nil {
		return fmt.Errorf("send reply failed: %w", err)
	}
	if l.dedup != nil && msg.MessageID != "" {
		if err := l.dedup.MarkProcessed(ctx, msg.MessageID, l.now()); err != nil {
			slog.Warn("InboundLoop.Process: mark processed failed", "error", err, "message_id", msg.MessageID)
		}
	}
	return nil
}
