// Package email delivers the email channel through the Resend API.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// DefaultFromEmail is Resend's shared onboarding sender.
const DefaultFromEmail = "onboarding@resend.dev"

// DefaultSubject is used when neither the caller nor the trigger provides one.
const DefaultSubject = "A message for you"

// emailsService is the subset of the Resend SDK used here.
type emailsService interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Opts holds configuration for the email client.
type Opts struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// Option configures the email client.
type Option func(*Opts)

// WithAPIKey sets the Resend API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithFromEmail sets the sender address.
func WithFromEmail(from string) Option {
	return func(o *Opts) { o.FromEmail = from }
}

// WithFromName sets the sender display name.
func WithFromName(name string) Option {
	return func(o *Opts) { o.FromName = name }
}

// Client sends plain-text email.
type Client struct {
	emails emailsService
	from   string
}

// NewClient creates a Resend-backed client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend API key not set")
	}
	slog.Debug("email.NewClient: Resend client created", "from_set", cfg.FromEmail != "")
	return newClient(resend.NewClient(cfg.APIKey).Emails, cfg), nil
}

func newClient(emails emailsService, cfg Opts) *Client {
	from := cfg.FromEmail
	if from == "" {
		from = DefaultFromEmail
	}
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, from)
	}
	return &Client{emails: emails, from: from}
}

// Send emails body to recipient.
func (c *Client) Send(ctx context.Context, recipient, body, subject string) (models.SendResult, error) {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	resp, err := c.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{recipient},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		slog.Error("email.Send: Resend send failed", "error", err, "to", recipient)
		return models.SendResult{}, fmt.Errorf("failed to send email via Resend: %w", err)
	}
	res := models.SendResult{Status: "sent"}
	if resp != nil {
		res.ExternalID = resp.Id
	}
	slog.Debug("email.Send: email sent", "to", recipient, "id", res.ExternalID)
	return res, nil
}
