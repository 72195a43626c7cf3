// Package store provides storage backends for SalesPipe.
//
// It includes SQLite and PostgreSQL backends sharing one SQL implementation and
// an in-memory store with the same semantics for tests and ephemeral runs.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// Store is the full persistence surface used by the services.
type Store interface {
	TriggerRepo
	BookingRepo
	ConversationRepo
	AnalyticsRepo
	DedupRepo

	Ping(ctx context.Context) error
	Close() error
}

// InMemoryStore keeps everything in process memory. A single mutex makes every
// conditional update atomic, mirroring the SQL backends.
type InMemoryStore struct {
	mu sync.Mutex

	nextTriggerID int64
	nextBookingID int64
	nextMessageID int64
	nextSentID    int64

	triggers      []models.Trigger
	bookings      []models.Booking
	conversations []models.ConversationMessage
	sent          []models.SentMessage
	dedup         map[string]DedupRecord
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{dedup: make(map[string]DedupRecord)}
}

func (s *InMemoryStore) Ping(ctx context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }

// --- triggers ---

func (s *InMemoryStore) CreateTriggers(ctx context.Context, triggers ...*models.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range triggers {
		s.nextTriggerID++
		t.ID = s.nextTriggerID
		s.triggers = append(s.triggers, *t)
	}
	return nil
}

func (s *InMemoryStore) findTrigger(id int64) *models.Trigger {
	for i := range s.triggers {
		if s.triggers[i].ID == id {
			return &s.triggers[i]
		}
	}
	return nil
}

func (s *InMemoryStore) GetTrigger(ctx context.Context, id int64) (*models.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findTrigger(id)
	if t == nil {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) ListTriggers(ctx context.Context, filter models.TriggerFilter) ([]models.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Trigger
	for _, t := range s.triggers {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.CampaignName != "" && t.CampaignName != filter.CampaignName {
			continue
		}
		if filter.Recipient != "" && t.Recipient != filter.Recipient {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return limitSlice(out, filter.Limit), nil
}

func (s *InMemoryStore) DueTriggers(ctx context.Context, now time.Time, limit int) ([]models.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Trigger
	for _, t := range s.triggers {
		if t.Status == models.TriggerStatusActive && !t.ScheduledAt.After(now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return limitSlice(out, limit), nil
}

// moveTrigger applies fn to the trigger when its status is one of from.
func (s *InMemoryStore) moveTrigger(id int64, fn func(t *models.Trigger), from ...models.TriggerStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findTrigger(id)
	if t == nil || !statusIn(t.Status, from) {
		return false
	}
	fn(t)
	return true
}

func statusIn(s models.TriggerStatus, set []models.TriggerStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) CompleteTrigger(ctx context.Context, id int64, now time.Time, executed bool) (bool, error) {
	return s.moveTrigger(id, func(t *models.Trigger) {
		t.Status = models.TriggerStatusCompleted
		if executed {
			at := now
			t.ExecutedAt = &at
		}
		t.UpdatedAt = now
	}, models.TriggerStatusActive), nil
}

func (s *InMemoryStore) RecordTriggerFailure(ctx context.Context, id int64, retryAt, now time.Time) (bool, error) {
	return s.moveTrigger(id, func(t *models.Trigger) {
		t.RetriesDone++
		if t.RetriesDone >= t.MaxRetries {
			t.Status = models.TriggerStatusFailed
		} else {
			t.ScheduledAt = retryAt
		}
		t.UpdatedAt = now
	}, models.TriggerStatusActive), nil
}

func (s *InMemoryStore) FailTrigger(ctx context.Context, id int64, now time.Time) (bool, error) {
	return s.moveTrigger(id, func(t *models.Trigger) {
		t.Status = models.TriggerStatusFailed
		t.UpdatedAt = now
	}, models.TriggerStatusActive), nil
}

func (s *InMemoryStore) CancelTrigger(ctx context.Context, id int64, now time.Time) (bool, error) {
	return s.moveTrigger(id, func(t *models.Trigger) {
		t.Status = models.TriggerStatusCancelled
		t.UpdatedAt = now
	}, models.TriggerStatusActive, models.TriggerStatusPaused), nil
}

func (s *InMemoryStore) CancelCampaign(ctx context.Context, campaign string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.triggers {
		t := &s.triggers[i]
		if t.CampaignName != campaign || campaign == "" {
			continue
		}
		if t.Status == models.TriggerStatusActive || t.Status == models.TriggerStatusPaused {
			t.Status = models.TriggerStatusCancelled
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) PauseTrigger(ctx context.Context, id int64, now time.Time) (bool, error) {
	return s.moveTrigger(id, func(t *models.Trigger) {
		t.Status = models.TriggerStatusPaused
		t.UpdatedAt = now
	}, models.TriggerStatusActive), nil
}

func (s *InMemoryStore) ResumeTrigger(ctx context.Context, id int64, now time.Time) (bool, error) {
	return s.moveTrigger(id, func(t *models.Trigger) {
		t.Status = models.TriggerStatusActive
		t.UpdatedAt = now
	}, models.TriggerStatusPaused), nil
}

func (s *InMemoryStore) CompleteTriggersOnReply(ctx context.Context, recipient string, latestOnly bool, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*models.Trigger
	for i := range s.triggers {
		t := &s.triggers[i]
		if t.Recipient == recipient && t.Status == models.TriggerStatusActive && t.StopOnReply {
			matches = append(matches, t)
		}
	}
	if latestOnly && len(matches) > 1 {
		latest := matches[0]
		for _, t := range matches[1:] {
			if t.CreatedAt.After(latest.CreatedAt) || (t.CreatedAt.Equal(latest.CreatedAt) && t.ID > latest.ID) {
				latest = t
			}
		}
		matches = []*models.Trigger{latest}
	}
	for _, t := range matches {
		t.Status = models.TriggerStatusCompleted
		t.UpdatedAt = now
	}
	return int64(len(matches)), nil
}

func (s *InMemoryStore) LatestTriggerForRecipient(ctx context.Context, recipient string) (*models.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.Trigger
	for i := range s.triggers {
		t := &s.triggers[i]
		if t.Recipient != recipient {
			continue
		}
		if t.Status != models.TriggerStatusActive && t.Status != models.TriggerStatusCompleted {
			continue
		}
		if best == nil || triggerMoreRecent(t, best) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

// triggerMoreRecent orders by executed_at desc with nulls last, then created_at and id desc.
func triggerMoreRecent(a, b *models.Trigger) bool {
	switch {
	case a.ExecutedAt != nil && b.ExecutedAt == nil:
		return true
	case a.ExecutedAt == nil && b.ExecutedAt != nil:
		return false
	case a.ExecutedAt != nil && !a.ExecutedAt.Equal(*b.ExecutedAt):
		return a.ExecutedAt.After(*b.ExecutedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// --- bookings ---

func (s *InMemoryStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBookingID++
	b.ID = s.nextBookingID
	s.bookings = append(s.bookings, *b)
	return nil
}

func (s *InMemoryStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code = strings.ToUpper(code)
	for i := len(s.bookings) - 1; i >= 0; i-- {
		if s.bookings[i].ConfirmationCode == code {
			cp := s.bookings[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for i := len(s.bookings) - 1; i >= 0; i-- {
		b := s.bookings[i]
		if filter.PhoneNumber != "" && b.PhoneNumber != filter.PhoneNumber {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return limitSlice(out, filter.Limit), nil
}

func applyBookingTransition(b *models.Booking, to models.BookingStatus, now time.Time) {
	at := now
	b.Status = to
	b.UpdatedAt = now
	if to == models.BookingStatusConfirmed {
		b.ConfirmedAt = &at
	} else {
		b.CancelledAt = &at
	}
}

func (s *InMemoryStore) TransitionBooking(ctx context.Context, id int64, to models.BookingStatus, now time.Time) (bool, error) {
	if _, err := bookingTransitionSet(to); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		b := &s.bookings[i]
		if b.ID == id && b.Status == models.BookingStatusPending {
			applyBookingTransition(b, to, now)
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) TransitionPendingBookings(ctx context.Context, phone string, to models.BookingStatus, now time.Time) (int64, error) {
	if _, err := bookingTransitionSet(to); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.bookings {
		b := &s.bookings[i]
		if b.PhoneNumber == phone && b.Status == models.BookingStatusPending {
			applyBookingTransition(b, to, now)
			n++
		}
	}
	return n, nil
}

// --- conversations ---

func (s *InMemoryStore) AppendMessage(ctx context.Context, m *models.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMessageID++
	m.ID = s.nextMessageID
	s.conversations = append(s.conversations, *m)
	return nil
}

func (s *InMemoryStore) RecentMessages(ctx context.Context, phone string, limit int) ([]models.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ConversationMessage
	for _, m := range s.conversations {
		if m.PhoneNumber == phone {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *InMemoryStore) HasInboundSince(ctx context.Context, phone string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.conversations {
		if m.PhoneNumber == phone && m.Role == models.RoleUser && !m.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ListContacts(ctx context.Context, limit int) ([]models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPhone := make(map[string]*models.Contact)
	var order []string
	for _, m := range s.conversations {
		c, ok := byPhone[m.PhoneNumber]
		if !ok {
			c = &models.Contact{PhoneNumber: m.PhoneNumber}
			byPhone[m.PhoneNumber] = c
			order = append(order, m.PhoneNumber)
		}
		c.MessageCount++
		c.LastMessage = m.Message
		c.LastRole = m.Role
		c.LastChannel = m.Channel
		c.LastMessageAt = m.CreatedAt
	}
	out := make([]models.Contact, 0, len(order))
	for _, p := range order {
		out = append(out, *byPhone[p])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return limitSlice(out, limit), nil
}

func (s *InMemoryStore) RecordSentMessage(ctx context.Context, m *models.SentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSentID++
	m.ID = s.nextSentID
	s.sent = append(s.sent, *m)
	return nil
}

func (s *InMemoryStore) ListSentMessages(ctx context.Context, limit int) ([]models.SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SentMessage, 0, len(s.sent))
	for i := len(s.sent) - 1; i >= 0; i-- {
		out = append(out, s.sent[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limitSlice(out, limit), nil
}

// --- analytics ---

func (s *InMemoryStore) Stats(ctx context.Context, now time.Time) (*models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := startOfDay(now)
	st := &models.Stats{ByChannel: map[string]int{}, SentLast7Days: emptyDailyWindow(today)}
	st.TotalSent = len(s.sent)
	for _, m := range s.sent {
		if !m.CreatedAt.Before(today) {
			st.SentToday++
		}
		st.ByChannel[string(m.Channel)]++
		addToDailyWindow(st.SentLast7Days, today, m.CreatedAt)
	}
	st.TotalTriggers = len(s.triggers)
	for _, t := range s.triggers {
		if t.Status == models.TriggerStatusActive {
			st.ActiveTriggers++
		}
	}
	st.TotalBookings = len(s.bookings)
	for _, b := range s.bookings {
		switch b.Status {
		case models.BookingStatusPending:
			st.PendingBookings++
		case models.BookingStatusConfirmed:
			st.ConfirmedBookings++
		}
	}
	st.TotalMessages = len(s.conversations)
	phones := make(map[string]struct{})
	for _, m := range s.conversations {
		phones[m.PhoneNumber] = struct{}{}
	}
	st.TotalContacts = len(phones)
	return st, nil
}

// --- dedup ---

func (s *InMemoryStore) RecordInbound(ctx context.Context, messageID, sender string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[messageID]; ok {
		return false, nil
	}
	s.dedup[messageID] = DedupRecord{MessageID: messageID, Sender: sender, ReceivedAt: now}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(ctx context.Context, messageID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.dedup[messageID]
	if !ok {
		return nil
	}
	at := now
	rec.ProcessedAt = &at
	s.dedup[messageID] = rec
	return nil
}

func limitSlice[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
