// Package messaging routes outbound messages to channel senders, canonicalizes
// recipients and feeds inbound provider events to the reply handler.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// Sender delivers one message on one channel. Recipients are canonical; the
// sender re-adds any transport prefix it needs.
type Sender interface {
	Send(ctx context.Context, recipient, body, subject string) (models.SendResult, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, recipient, body, subject string) (models.SendResult, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, recipient, body, subject string) (models.SendResult, error) {
	return f(ctx, recipient, body, subject)
}

// Router dispatches to the sender registered for a channel.
type Router struct {
	mu      sync.RWMutex
	senders map[models.Channel]Sender
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{senders: make(map[models.Channel]Sender)}
}

// Register installs s for channel ch, replacing any previous sender.
func (r *Router) Register(ch models.Channel, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[ch] = s
	slog.Debug("Router.Register: sender registered", "channel", ch)
}

// Has reports whether a sender is registered for ch.
func (r *Router) Has(ch models.Channel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.senders[ch]
	return ok
}

// Send delivers through the channel's sender. Results without a provider id
// get a locally generated one so audit rows stay distinguishable.
func (r *Router) Send(ctx context.Context, ch models.Channel, recipient, body, subject string) (models.SendResult, error) {
	r.mu.RLock()
	s, ok := r.senders[ch]
	r.mu.RUnlock()
	if !ok {
		return models.SendResult{}, fmt.Errorf("%w: %s", models.ErrUnsupportedChannel, ch)
	}
	res, err := s.Send(ctx, recipient, body, subject)
	if err != nil {
		return models.SendResult{}, err
	}
	if res.ExternalID == "" {
		res.ExternalID = "local-" + uuid.NewString()
	}
	if res.Status == "" {
		res.Status = "sent"
	}
	return res, nil
}

// IsUnsupportedChannel reports whether err came from a channel with no sender.
func IsUnsupportedChannel(err error) bool {
	return errors.Is(err, models.ErrUnsupportedChannel)
}
