// Package twilioapi wraps the Twilio API for WhatsApp and SMS delivery, TwiML
// webhook replies and webhook signature validation.
package twilioapi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// WhatsAppPrefix is the address prefix Twilio uses for WhatsApp endpoints.
const WhatsAppPrefix = "whatsapp:"

// messageCreator is the subset of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio client.
type Opts struct {
	AccountSID   string
	AuthToken    string
	FromWhatsApp string
	FromSMS      string
}

// Option defines a configuration option for the Twilio client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhatsApp sets the WhatsApp sender number. A missing
// "whatsapp:" prefix is added.
func WithFromWhatsApp(from string) Option {
	return func(o *Opts) { o.FromWhatsApp = from }
}

// WithFromSMS sets the SMS sender number.
func WithFromSMS(from string) Option {
	return func(o *Opts) { o.FromSMS = from }
}

// Client wraps the Twilio REST API.
type Client struct {
	api          messageCreator
	fromWhatsApp string
	fromSMS      string
}

// NewClient creates a Twilio client. Credentials are required; at least one
// sender number must be configured.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhatsApp_set", cfg.FromWhatsApp != "",
		"FromSMS_set", cfg.FromSMS != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhatsApp == "" && cfg.FromSMS == "" {
		return nil, fmt.Errorf("a WhatsApp or SMS sender number must be provided")
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newClient(rest.Api, cfg), nil
}

func newClient(api messageCreator, cfg Opts) *Client {
	from := cfg.FromWhatsApp
	if from != "" && !strings.HasPrefix(from, WhatsAppPrefix) {
		from = WhatsAppPrefix + from
	}
	return &Client{api: api, fromWhatsApp: from, fromSMS: cfg.FromSMS}
}

// HasWhatsApp reports whether a WhatsApp sender number is configured.
func (c *Client) HasWhatsApp() bool { return c.fromWhatsApp != "" }

// HasSMS reports whether an SMS sender number is configured.
func (c *Client) HasSMS() bool { return c.fromSMS != "" }

// e164 re-adds the leading plus to a canonical digits-only number.
func e164(number string) string {
	if strings.HasPrefix(number, "+") {
		return number
	}
	return "+" + number
}

func (c *Client) create(ctx context.Context, to, from, body string) (models.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return models.SendResult{}, err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	msg, err := c.api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio CreateMessage failed", "to", to, "error", err)
		return models.SendResult{}, fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	var res models.SendResult
	if msg != nil {
		if msg.Sid != nil {
			res.ExternalID = *msg.Sid
		}
		if msg.Status != nil {
			res.Status = *msg.Status
		}
	}
	slog.Debug("Twilio message sent", "to", to, "sid", res.ExternalID)
	return res, nil
}

// SendWhatsApp sends a WhatsApp message to a canonical phone number.
func (c *Client) SendWhatsApp(ctx context.Context, to, body string) (models.SendResult, error) {
	if c.fromWhatsApp == "" {
		return models.SendResult{}, fmt.Errorf("twilio WhatsApp sender number not configured")
	}
	return c.create(ctx, WhatsAppPrefix+e164(to), c.fromWhatsApp, body)
}

// SendSMS sends an SMS to a canonical phone number.
func (c *Client) SendSMS(ctx context.Context, to, body string) (models.SendResult, error) {
	if c.fromSMS == "" {
		return models.SendResult{}, fmt.Errorf("twilio SMS sender number not configured")
	}
	return c.create(ctx, e164(to), c.fromSMS, body)
}

// ChannelSender adapts one Twilio channel to the generic sender signature.
type ChannelSender struct {
	send func(ctx context.Context, to, body string) (models.SendResult, error)
}

// Send delivers body to recipient. The subject is ignored; Twilio messages have none.
func (s ChannelSender) Send(ctx context.Context, recipient, body, subject string) (models.SendResult, error) {
	return s.send(ctx, recipient, body)
}

// WhatsAppSender returns a sender for the WhatsApp channel.
func (c *Client) WhatsAppSender() ChannelSender {
	return ChannelSender{send: c.SendWhatsApp}
}

// SMSSender returns a sender for the SMS channel.
func (c *Client) SMSSender() ChannelSender {
	return ChannelSender{send: c.SendSMS}
}
