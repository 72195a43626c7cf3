// Package whatsapp wraps the whatsmeow client for native WhatsApp delivery and
// inbound message events in SalesPipe.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
)

// Constants for WhatsApp client configuration
const (
	// DefaultSQLitePath is the default path for the whatsmeow device database
	DefaultSQLitePath = "/var/lib/salespipe/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users
	JIDSuffix = "s.whatsapp.net"
	// DefaultChannelBufferSize is the buffer size of the inbound message channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an event handler waits on a full channel
	DefaultChannelTimeout = 1 * time.Second
)

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow database connection string
	QRPath      string // path to write login QR code
	NumericCode bool   // use numeric login code instead of QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput instructs the WhatsApp client to write the login QR code to the specified path.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode instructs the WhatsApp client to use numeric login code instead of QR code.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// Client wraps the whatsmeow client.
type Client struct {
	waClient *whatsmeow.Client
	inbound  chan models.InboundMessage
}

// driverForDSN picks the database/sql driver whatsmeow should use.
func driverForDSN(dsn string) string {
	if store.DetectDSNType(dsn) == store.BackendPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// NewClient creates a connected WhatsApp client, running the QR login flow
// when the device store has no session yet.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("WhatsApp NewClient options set", "DBDSN_set", cfg.DBDSN != "", "QRPath_set", cfg.QRPath != "", "NumericCode", cfg.NumericCode)

	dbDSN := cfg.DBDSN
	if dbDSN == "" {
		dbDSN = DefaultSQLitePath
		slog.Debug("No WhatsApp database DSN provided, using default SQLite path", "default_path", dbDSN)
	}
	dbDriver := driverForDSN(dbDSN)
	if dbDriver == "sqlite3" && !strings.Contains(dbDSN, "foreign_keys") {
		slog.Warn("SQLite database for WhatsApp does not appear to have foreign keys enabled; whatsmeow recommends them",
			"dsn_example", "file:"+dbDSN+"?_foreign_keys=on")
	}

	ctx := context.Background()
	container, err := sqlstore.New(ctx, dbDriver, dbDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		slog.Error("Failed to initialize WhatsApp DB store", "error", err)
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		slog.Error("Failed to get first device from store", "error", err)
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	c := &Client{
		waClient: whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true)),
		inbound:  make(chan models.InboundMessage, DefaultChannelBufferSize),
	}
	c.waClient.AddEventHandler(c.handleEvent)

	if c.waClient.Store.ID == nil {
		if err := c.login(cfg); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("WhatsApp already logged in, connecting to server")
		if err := c.waClient.Connect(); err != nil {
			slog.Error("Failed to connect to WhatsApp server", "error", err)
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
	}
	slog.Info("WhatsApp client connected successfully")
	return c, nil
}

func (c *Client) login(cfg Opts) error {
	slog.Info("WhatsApp login required; starting QR code flow")
	qrChan, _ := c.waClient.GetQRChannel(context.Background())
	if err := c.waClient.Connect(); err != nil {
		slog.Error("Failed to connect to WhatsApp during login", "error", err)
		return fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
	}
	writer := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			slog.Error("Failed to create QR file", "error", err)
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}
	for evt := range qrChan {
		if evt.Event == "code" {
			if cfg.NumericCode {
				fmt.Fprintln(writer, evt.Code)
			} else {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
			}
			continue
		}
		slog.Info("WhatsApp login event", "event", evt.Event)
	}
	return nil
}

// Send delivers body to a canonical phone number. The subject is ignored.
func (c *Client) Send(ctx context.Context, recipient, body, subject string) (models.SendResult, error) {
	if c.waClient == nil || c.waClient.Store == nil {
		return models.SendResult{}, fmt.Errorf("whatsapp client not initialized")
	}
	if recipient == "" {
		return models.SendResult{}, fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return models.SendResult{}, fmt.Errorf("message body cannot be empty")
	}

	jid := types.NewJID(strings.TrimPrefix(recipient, "+"), JIDSuffix)
	resp, err := c.waClient.SendMessage(ctx, jid, &waE2E.Message{Conversation: &body})
	if err != nil {
		slog.Error("Failed to send WhatsApp message", "error", err, "to", recipient)
		return models.SendResult{}, fmt.Errorf("failed to send message to %s: %w", recipient, err)
	}
	slog.Debug("WhatsApp message sent successfully", "to", recipient, "id", resp.ID)
	return models.SendResult{ExternalID: string(resp.ID), Status: "sent"}, nil
}

// Incoming returns the channel of inbound text messages.
func (c *Client) Incoming() <-chan models.InboundMessage {
	return c.inbound
}

// Close disconnects from WhatsApp.
func (c *Client) Close() {
	if c.waClient != nil {
		c.waClient.Disconnect()
	}
}

func (c *Client) handleEvent(evt interface{}) {
	msgEvt, ok := evt.(*events.Message)
	if !ok {
		return
	}
	in, ok := inboundFromEvent(msgEvt)
	if !ok {
		return
	}
	select {
	case c.inbound <- in:
		slog.Debug("WhatsApp incoming message forwarded", "from", in.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsApp inbound channel blocked, dropping message", "from", in.From, "timeout", DefaultChannelTimeout)
	}
}

// inboundFromEvent extracts a direct text message. Group chats, our own
// messages and non-text payloads are skipped.
func inboundFromEvent(evt *events.Message) (models.InboundMessage, bool) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return models.InboundMessage{}, false
	}
	var text string
	switch {
	case evt.Message.GetConversation() != "":
		text = evt.Message.GetConversation()
	case evt.Message.GetExtendedTextMessage().GetText() != "":
		text = evt.Message.GetExtendedTextMessage().GetText()
	default:
		return models.InboundMessage{}, false
	}
	return models.InboundMessage{
		From:      evt.Info.Sender.User,
		Body:      text,
		Channel:   models.ChannelWhatsApp,
		MessageID: string(evt.Info.ID),
		Time:      evt.Info.Timestamp.UTC(),
	}, true
}
