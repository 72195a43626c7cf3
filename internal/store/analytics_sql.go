package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// statsWindowDays is the number of days covered by Stats.SentLast7Days.
const statsWindowDays = 7

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// emptyDailyWindow returns zeroed buckets for the days ending with today.
func emptyDailyWindow(today time.Time) []models.DailyCount {
	out := make([]models.DailyCount, statsWindowDays)
	for i := 0; i < statsWindowDays; i++ {
		day := today.AddDate(0, 0, i-(statsWindowDays-1))
		out[i] = models.DailyCount{Date: day.Format("2006-01-02")}
	}
	return out
}

// addToDailyWindow counts t into its bucket if it falls within the window.
func addToDailyWindow(window []models.DailyCount, today, t time.Time) {
	first := today.AddDate(0, 0, -(statsWindowDays - 1))
	day := startOfDay(t)
	if day.Before(first) || day.After(today) {
		return
	}
	idx := int(day.Sub(first).Hours() / 24)
	if idx >= 0 && idx < len(window) {
		window[idx].Count++
	}
}

// Stats computes the dashboard overview.
func (s *sqlStore) Stats(ctx context.Context, now time.Time) (*models.Stats, error) {
	today := startOfDay(now)
	st := &models.Stats{ByChannel: map[string]int{}}

	counts := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&st.TotalSent, `SELECT COUNT(*) FROM sent_messages`, nil},
		{&st.SentToday, `SELECT COUNT(*) FROM sent_messages WHERE created_at >= ?`, []interface{}{today}},
		{&st.ActiveTriggers, `SELECT COUNT(*) FROM triggers WHERE status = 'active'`, nil},
		{&st.TotalTriggers, `SELECT COUNT(*) FROM triggers`, nil},
		{&st.PendingBookings, `SELECT COUNT(*) FROM bookings WHERE status = 'pending'`, nil},
		{&st.ConfirmedBookings, `SELECT COUNT(*) FROM bookings WHERE status = 'confirmed'`, nil},
		{&st.TotalBookings, `SELECT COUNT(*) FROM bookings`, nil},
		{&st.TotalContacts, `SELECT COUNT(DISTINCT phone_number) FROM conversations`, nil},
		{&st.TotalMessages, `SELECT COUNT(*) FROM conversations`, nil},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, s.rebind(c.query), c.args...).Scan(c.dest); err != nil {
			slog.Error(s.dialect.String()+" Stats count failed", "error", err, "query", c.query)
			return nil, fmt.Errorf("stats count failed: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT channel, COUNT(*) FROM sent_messages GROUP BY channel`)
	if err != nil {
		slog.Error(s.dialect.String()+" Stats by channel failed", "error", err)
		return nil, err
	}
	type channelCount struct {
		channel string
		count   int
	}
	byChannel, err := collectRows(rows, func(row rowScanner) (channelCount, error) {
		var cc channelCount
		err := row.Scan(&cc.channel, &cc.count)
		return cc, err
	})
	if err != nil {
		return nil, err
	}
	for _, cc := range byChannel {
		st.ByChannel[cc.channel] = cc.count
	}

	st.SentLast7Days = emptyDailyWindow(today)
	rows, err = s.db.QueryContext(ctx, s.rebind(`SELECT created_at FROM sent_messages WHERE created_at >= ?`),
		today.AddDate(0, 0, -(statsWindowDays-1)))
	if err != nil {
		slog.Error(s.dialect.String()+" Stats daily failed", "error", err)
		return nil, err
	}
	stamps, err := collectRows(rows, func(row rowScanner) (time.Time, error) {
		var t time.Time
		err := row.Scan(&t)
		return t, err
	})
	if err != nil {
		return nil, err
	}
	for _, t := range stamps {
		addToDailyWindow(st.SentLast7Days, today, t)
	}
	return st, nil
}
