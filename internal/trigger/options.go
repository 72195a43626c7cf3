package trigger

import "time"

// Scheduler defaults.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultBatchLimit   = 100
	RetryBackoff        = time.Minute
	ReplyWindow         = 24 * time.Hour
	DefaultListLimit    = 100
	MaxListLimit        = 500
)

// AckSystemPrompt opens the conversation when a trigger is created.
const AckSystemPrompt = "You are a helpful sales assistant. Start the conversation naturally."

// Opts holds configuration for the trigger service and scheduler.
type Opts struct {
	SendAck      bool
	PollInterval time.Duration
	BatchLimit   int
	Now          func() time.Time
}

// Option configures the trigger service or scheduler.
type Option func(*Opts)

// WithSendAck toggles the acknowledgement sent when a trigger or campaign is created.
func WithSendAck(enabled bool) Option {
	return func(o *Opts) { o.SendAck = enabled }
}

// WithPollInterval sets how often the scheduler looks for due triggers.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.PollInterval = d }
}

// WithBatchLimit caps how many due triggers one poll executes.
func WithBatchLimit(n int) Option {
	return func(o *Opts) { o.BatchLimit = n }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

func buildOpts(opts []Option) Opts {
	cfg := Opts{
		SendAck:      true,
		PollInterval: DefaultPollInterval,
		BatchLimit:   DefaultBatchLimit,
		Now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return cfg
}
