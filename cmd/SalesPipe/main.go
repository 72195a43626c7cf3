package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/SalesPipe/internal/api"
	"github.com/BTreeMap/SalesPipe/internal/booking"
	"github.com/BTreeMap/SalesPipe/internal/conversation"
	"github.com/BTreeMap/SalesPipe/internal/email"
	"github.com/BTreeMap/SalesPipe/internal/genai"
	"github.com/BTreeMap/SalesPipe/internal/lockfile"
	"github.com/BTreeMap/SalesPipe/internal/messaging"
	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
	"github.com/BTreeMap/SalesPipe/internal/trigger"
	"github.com/BTreeMap/SalesPipe/internal/twilioapi"
	"github.com/BTreeMap/SalesPipe/internal/util"
	"github.com/BTreeMap/SalesPipe/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for SalesPipe state data
	DefaultStateDir = "/var/lib/salespipe"
	// DefaultAppDBFileName is the default SQLite database filename for application data
	DefaultAppDBFileName = "salespipe.db"
	// DefaultWhatsAppDBFileName is the default SQLite database filename for the whatsmeow device store
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultAPIAddr is the default HTTP listen address
	DefaultAPIAddr = ":8080"

	ProviderTwilio    = "twilio"
	ProviderWhatsmeow = "whatsmeow"
)

// logLevel is adjusted once LOG_LEVEL is known.
var logLevel = new(slog.LevelVar)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()
	setLogLevel(config.LogLevel)

	// Parse command line flags
	flags, err := parseCommandLineFlags(config, os.Args[1:])
	if err != nil {
		slog.Error("Failed to parse command line flags", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("SalesPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("SalesPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	ApplicationDBDSN string
	WhatsAppDBDSN    string
	APIAddr          string
	LogLevel         string

	OpenAIKey          string
	GenAIBaseURL       string
	GenAIModel         string
	GenAIFallbackModel string
	GenAIDebug         bool

	TwilioAccountSID      string
	TwilioAuthToken       string
	TwilioWhatsAppNumber  string
	TwilioSMSNumber       string
	TwilioValidateWebhook bool
	WebhookBaseURL        string
	WhatsAppProvider      string

	ResendAPIKey string
	FromEmail    string
	FromName     string

	PollInterval time.Duration
	BatchLimit   int
	SendAck      bool

	ReplyHistoryLimit     int
	ReplyStopScope        string
	ReplySystemPromptFile string
}

// Flags holds command line flag values. Settings without a flag are read
// from config.
type Flags struct {
	qrOutput         *string
	numeric          *bool
	stateDir         *string
	appDBDSN         *string
	whatsappDBDSN    *string
	apiAddr          *string
	openaiKey        *string
	whatsappProvider *string
	pollInterval     *time.Duration
	config           Config
}

// initializeLogger sets up structured logging; the level starts at debug
func initializeLogger() {
	logLevel.Set(slog.LevelDebug)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

// setLogLevel applies a debug|info|warn|error level name.
func setLogLevel(name string) {
	if name == "" {
		return
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		slog.Warn("Invalid LOG_LEVEL, keeping current level", "value", name, "level", logLevel.Level())
		return
	}
	logLevel.Set(level)
}

func defaultAppDSN(stateDir string) string {
	return filepath.Join(stateDir, DefaultAppDBFileName)
}

func defaultWhatsAppDSN(stateDir string) string {
	return "file:" + filepath.Join(stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:         os.Getenv("SALESPIPE_STATE_DIR"),
		ApplicationDBDSN: os.Getenv("SALESPIPE_DB_DSN"),
		WhatsAppDBDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		APIAddr:          os.Getenv("API_ADDR"),
		LogLevel:         os.Getenv("LOG_LEVEL"),

		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		GenAIBaseURL:       os.Getenv("GENAI_BASE_URL"),
		GenAIModel:         os.Getenv("GENAI_MODEL"),
		GenAIFallbackModel: os.Getenv("GENAI_FALLBACK_MODEL"),
		GenAIDebug:         util.ParseBoolEnv("GENAI_DEBUG", false),

		TwilioAccountSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber:  os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		TwilioSMSNumber:       os.Getenv("TWILIO_SMS_NUMBER"),
		TwilioValidateWebhook: util.ParseBoolEnv("TWILIO_VALIDATE_WEBHOOK", false),
		WebhookBaseURL:        os.Getenv("WEBHOOK_BASE_URL"),
		WhatsAppProvider:      strings.ToLower(os.Getenv("WHATSAPP_PROVIDER")),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		FromEmail:    os.Getenv("FROM_EMAIL"),
		FromName:     os.Getenv("FROM_NAME"),

		PollInterval: util.ParseDurationEnv("TRIGGER_POLL_INTERVAL", trigger.DefaultPollInterval),
		BatchLimit:   util.ParseIntEnv("TRIGGER_BATCH_LIMIT", trigger.DefaultBatchLimit),
		SendAck:      util.ParseBoolEnv("TRIGGER_SEND_ACK", true),

		ReplyHistoryLimit:     util.ParseIntEnv("REPLY_HISTORY_LIMIT", conversation.DefaultHistoryLimit),
		ReplyStopScope:        strings.ToLower(os.Getenv("REPLY_STOP_SCOPE")),
		ReplySystemPromptFile: os.Getenv("REPLY_SYSTEM_PROMPT_FILE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SALESPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	// SALESPIPE_DB_DSN takes precedence over DATABASE_URL
	if config.ApplicationDBDSN == "" {
		config.ApplicationDBDSN = os.Getenv("DATABASE_URL")
	}
	if config.ApplicationDBDSN == "" {
		config.ApplicationDBDSN = defaultAppDSN(config.StateDir)
		slog.Debug("No application database DSN provided, defaulting to SQLite", "sqlite_path", config.ApplicationDBDSN)
	}
	if config.WhatsAppDBDSN == "" {
		config.WhatsAppDBDSN = defaultWhatsAppDSN(config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	if config.WhatsAppProvider == "" {
		config.WhatsAppProvider = ProviderTwilio
	}
	if config.ReplyStopScope == "" {
		config.ReplyStopScope = conversation.StopScopeAll
	}

	slog.Debug("environment variables loaded",
		"SALESPIPE_STATE_DIR", config.StateDir,
		"APP_DB_DSN_SET", config.ApplicationDBDSN != "",
		"API_ADDR", config.APIAddr,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GENAI_BASE_URL", config.GenAIBaseURL,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioAccountSID != "",
		"TWILIO_VALIDATE_WEBHOOK", config.TwilioValidateWebhook,
		"WHATSAPP_PROVIDER", config.WhatsAppProvider,
		"RESEND_API_KEY_SET", config.ResendAPIKey != "",
		"TRIGGER_POLL_INTERVAL", config.PollInterval,
		"TRIGGER_SEND_ACK", config.SendAck,
		"REPLY_STOP_SCOPE", config.ReplyStopScope)

	return config
}

// parseCommandLineFlags parses args with environment defaults
func parseCommandLineFlags(config Config, args []string) (Flags, error) {
	fs := flag.NewFlagSet("salespipe", flag.ContinueOnError)
	flags := Flags{
		qrOutput:         fs.String("qr-output", "", "path to write the WhatsApp login QR code"),
		numeric:          fs.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:         fs.String("state-dir", config.StateDir, "state directory for SalesPipe data (overrides $SALESPIPE_STATE_DIR)"),
		appDBDSN:         fs.String("db-dsn", config.ApplicationDBDSN, "application database DSN, a SQLite path, postgres URL or \"memory\" (overrides $SALESPIPE_DB_DSN or $DATABASE_URL)"),
		whatsappDBDSN:    fs.String("whatsapp-db-dsn", config.WhatsAppDBDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)"),
		apiAddr:          fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		openaiKey:        fs.String("openai-api-key", config.OpenAIKey, "OpenAI-compatible API key (overrides $OPENAI_API_KEY)"),
		whatsappProvider: fs.String("whatsapp-provider", config.WhatsAppProvider, "WhatsApp provider, twilio or whatsmeow (overrides $WHATSAPP_PROVIDER)"),
		pollInterval:     fs.Duration("poll-interval", config.PollInterval, "trigger poll interval (overrides $TRIGGER_POLL_INTERVAL)"),
		config:           config,
	}
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// Follow a changed state directory unless the DSNs were set explicitly
	if *flags.stateDir != config.StateDir {
		if *flags.appDBDSN == defaultAppDSN(config.StateDir) {
			*flags.appDBDSN = defaultAppDSN(*flags.stateDir)
		}
		if *flags.whatsappDBDSN == defaultWhatsAppDSN(config.StateDir) {
			*flags.whatsappDBDSN = defaultWhatsAppDSN(*flags.stateDir)
		}
		slog.Debug("Updated database DSNs based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}
	*flags.whatsappProvider = strings.ToLower(*flags.whatsappProvider)
	if *flags.whatsappProvider != ProviderTwilio && *flags.whatsappProvider != ProviderWhatsmeow {
		return Flags{}, fmt.Errorf("unknown WhatsApp provider %q", *flags.whatsappProvider)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"appDBDSN_set", *flags.appDBDSN != "",
		"apiAddr", *flags.apiAddr,
		"openaiKeySet", *flags.openaiKey != "",
		"whatsappProvider", *flags.whatsappProvider,
		"pollInterval", *flags.pollInterval)
	return flags, nil
}

// isFileDSN reports whether dsn names a SQLite file.
func isFileDSN(dsn string) bool {
	return dsn != "" && dsn != store.BackendMemory && store.DetectDSNType(dsn) != store.BackendPostgres
}

// sqliteDir returns the directory holding a SQLite DSN's file.
func sqliteDir(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	return filepath.Dir(path)
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{*flags.stateDir}
	if isFileDSN(*flags.appDBDSN) {
		dirs = append(dirs, sqliteDir(*flags.appDBDSN))
	}
	if *flags.whatsappProvider == ProviderWhatsmeow && isFileDSN(*flags.whatsappDBDSN) {
		dirs = append(dirs, sqliteDir(*flags.whatsappDBDSN))
	}
	for _, dir := range dirs {
		slog.Debug("Creating directory for file-based storage", "dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create directory", "error", err, "dir", dir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	dsn := *flags.appDBDSN
	switch {
	case dsn == "" || dsn == store.BackendMemory:
		slog.Debug("No persistent database configured, using in-memory store")
		return []store.Option{store.WithInMemory()}
	case store.DetectDSNType(dsn) == store.BackendPostgres:
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return []store.Option{store.WithPostgresDSN(dsn)}
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
		return []store.Option{store.WithSQLiteDSN(dsn)}
	}
}

// buildWhatsAppOptions constructs whatsmeow client options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.whatsappDBDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDBDSN))
	}
	return waOpts
}

// buildTwilioOptions constructs Twilio client options. The WhatsApp number is
// only used when Twilio is the WhatsApp provider.
func buildTwilioOptions(flags Flags) []twilioapi.Option {
	cfg := flags.config
	opts := []twilioapi.Option{
		twilioapi.WithAccountSID(cfg.TwilioAccountSID),
		twilioapi.WithAuthToken(cfg.TwilioAuthToken),
	}
	if cfg.TwilioSMSNumber != "" {
		opts = append(opts, twilioapi.WithFromSMS(cfg.TwilioSMSNumber))
	}
	if *flags.whatsappProvider == ProviderTwilio && cfg.TwilioWhatsAppNumber != "" {
		opts = append(opts, twilioapi.WithFromWhatsApp(cfg.TwilioWhatsAppNumber))
	}
	return opts
}

// buildEmailOptions constructs email client options
func buildEmailOptions(flags Flags) []email.Option {
	cfg := flags.config
	opts := []email.Option{email.WithAPIKey(cfg.ResendAPIKey)}
	if cfg.FromEmail != "" {
		opts = append(opts, email.WithFromEmail(cfg.FromEmail))
	}
	if cfg.FromName != "" {
		opts = append(opts, email.WithFromName(cfg.FromName))
	}
	return opts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	cfg := flags.config
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if cfg.GenAIBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(cfg.GenAIBaseURL))
	}
	if cfg.GenAIModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(cfg.GenAIModel))
	}
	if cfg.GenAIFallbackModel != "" {
		genaiOpts = append(genaiOpts, genai.WithFallbackModel(cfg.GenAIFallbackModel))
	}
	if cfg.GenAIDebug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true, *flags.stateDir))
	}
	return genaiOpts
}

// buildTriggerOptions constructs trigger service and scheduler options
func buildTriggerOptions(flags Flags) []trigger.Option {
	return []trigger.Option{
		trigger.WithPollInterval(*flags.pollInterval),
		trigger.WithBatchLimit(flags.config.BatchLimit),
		trigger.WithSendAck(flags.config.SendAck),
	}
}

// buildReplyOptions constructs reply handler options
func buildReplyOptions(flags Flags) []conversation.Option {
	cfg := flags.config
	opts := []conversation.Option{
		conversation.WithHistoryLimit(cfg.ReplyHistoryLimit),
		conversation.WithStopScope(cfg.ReplyStopScope),
	}
	if cfg.ReplySystemPromptFile != "" {
		opts = append(opts, conversation.WithSystemPromptFile(cfg.ReplySystemPromptFile))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) ([]api.Option, error) {
	cfg := flags.config
	apiOpts := []api.Option{api.WithAddr(*flags.apiAddr)}
	if cfg.TwilioValidateWebhook {
		if cfg.TwilioAuthToken == "" || cfg.WebhookBaseURL == "" {
			return nil, errors.New("TWILIO_VALIDATE_WEBHOOK requires TWILIO_AUTH_TOKEN and WEBHOOK_BASE_URL")
		}
		apiOpts = append(apiOpts, api.WithSignatureValidator(twilioapi.NewSignatureValidator(cfg.TwilioAuthToken, cfg.WebhookBaseURL)))
	}
	return apiOpts, nil
}

// registerSenders wires every configured channel into router. The whatsmeow
// client is returned when it is the WhatsApp provider so its inbound events
// can be consumed.
func registerSenders(router *messaging.Router, flags Flags) (*whatsapp.Client, error) {
	cfg := flags.config
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		tw, err := twilioapi.NewClient(buildTwilioOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("twilio client: %w", err)
		}
		if tw.HasSMS() {
			router.Register(models.ChannelSMS, tw.SMSSender())
		}
		if tw.HasWhatsApp() {
			router.Register(models.ChannelWhatsApp, tw.WhatsAppSender())
		}
	}

	var wa *whatsapp.Client
	if *flags.whatsappProvider == ProviderWhatsmeow {
		var err error
		wa, err = whatsapp.NewClient(buildWhatsAppOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("whatsmeow client: %w", err)
		}
		router.Register(models.ChannelWhatsApp, wa)
	}

	if cfg.ResendAPIKey != "" {
		em, err := email.NewClient(buildEmailOptions(flags)...)
		if err != nil {
			return wa, fmt.Errorf("email client: %w", err)
		}
		router.Register(models.ChannelEmail, em)
	}

	for _, ch := range []models.Channel{models.ChannelWhatsApp, models.ChannelSMS, models.ChannelEmail} {
		if !router.Has(ch) {
			slog.Warn("No sender configured for channel; sends on it will fail", "channel", ch)
		}
	}
	return wa, nil
}

// run wires the modules together and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context, flags Flags) error {
	if err := ensureDirectoriesExist(flags); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	// Only one scheduler may poll a state directory
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("Failed to release state directory lock", "error", err)
		}
	}()

	st, err := store.Open(buildStoreOptions(flags)...)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	router := messaging.NewRouter()
	wa, err := registerSenders(router, flags)
	if wa != nil {
		defer wa.Close()
	}
	if err != nil {
		return err
	}

	var gen genai.Generator
	if client, err := genai.NewClient(buildGenAIOptions(flags)...); err != nil {
		slog.Warn("Generator disabled; replies and acknowledgements use fixed text", "error", err)
	} else {
		gen = client
	}

	triggerOpts := buildTriggerOptions(flags)
	triggers := trigger.NewService(st, router, gen, triggerOpts...)
	sched := trigger.NewScheduler(st, router, triggerOpts...)

	replies, err := conversation.NewReplyHandler(st, gen, buildReplyOptions(flags)...)
	if err != nil {
		return fmt.Errorf("reply handler: %w", err)
	}
	if wa != nil {
		messaging.NewInboundLoop(wa, replies, router, st).Start(ctx)
	}

	apiOpts, err := buildAPIOptions(flags)
	if err != nil {
		return err
	}
	server := api.NewServer(api.Deps{
		Triggers:      triggers,
		Bookings:      booking.NewService(st, router),
		Conversations: conversation.NewService(st, router),
		Replies:       replies,
		Backend:       st,
	}, apiOpts...)

	slog.Info("Bootstrapping SalesPipe", "state_dir", *flags.stateDir, "api_addr", *flags.apiAddr, "whatsapp_provider", *flags.whatsappProvider)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return server.Start(gctx) })
	return g.Wait()
}
