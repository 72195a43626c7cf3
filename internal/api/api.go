// Package api provides the HTTP server for SalesPipe.
//
// It exposes REST endpoints for triggers, drip campaigns, bookings,
// conversations and analytics, plus the Twilio inbound webhooks that feed the
// reply handler.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BTreeMap/SalesPipe/internal/booking"
	"github.com/BTreeMap/SalesPipe/internal/conversation"
	"github.com/BTreeMap/SalesPipe/internal/messaging"
	"github.com/BTreeMap/SalesPipe/internal/metrics"
	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/store"
	"github.com/BTreeMap/SalesPipe/internal/trigger"
	"github.com/BTreeMap/SalesPipe/internal/twilioapi"
)

// Default server settings.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	maxBodyBytes           = 1 << 20
)

// Backend is the slice of the store the server uses directly.
type Backend interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context, now time.Time) (*models.Stats, error)
	store.DedupRepo
}

// Deps are the services the server routes to.
type Deps struct {
	Triggers      *trigger.Service
	Bookings      *booking.Service
	Conversations *conversation.Service
	Replies       messaging.ReplyHandler
	Backend       Backend
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	ShutdownTimeout time.Duration
	// Validator checks Twilio webhook signatures. Nil disables the check.
	Validator *twilioapi.SignatureValidator
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.ShutdownTimeout = d
	}
}

// WithSignatureValidator enables Twilio signature checks on webhooks.
func WithSignatureValidator(v *twilioapi.SignatureValidator) Option {
	return func(o *Opts) {
		o.Validator = v
	}
}

// Server serves the SalesPipe HTTP API.
type Server struct {
	deps      Deps
	addr      string
	timeout   time.Duration
	validator *twilioapi.SignatureValidator
	router    chi.Router
	now       func() time.Time
}

// NewServer creates a Server and builds its routes.
func NewServer(deps Deps, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, ShutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	s := &Server{
		deps:      deps,
		addr:      cfg.Addr,
		timeout:   cfg.ShutdownTimeout,
		validator: cfg.Validator,
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.router = s.routes()
	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.healthHandler)

		r.Route("/triggers", func(r chi.Router) {
			r.Post("/", s.createTriggerHandler)
			r.Get("/", s.listTriggersHandler)
			r.Post("/drip-campaign", s.createDripCampaignHandler)
			r.Delete("/campaign/{name}", s.cancelCampaignHandler)
			r.Get("/{id}", s.getTriggerHandler)
			r.Delete("/{id}", s.cancelTriggerHandler)
			r.Post("/{id}/cancel", s.cancelTriggerHandler)
			r.Post("/{id}/pause", s.pauseTriggerHandler)
			r.Post("/{id}/resume", s.resumeTriggerHandler)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", s.createBookingHandler)
			r.Get("/", s.listBookingsHandler)
			r.Get("/code/{code}", s.getBookingByCodeHandler)
			r.Get("/{id}", s.getBookingHandler)
			r.Post("/{id}/confirm", s.confirmBookingHandler)
			r.Post("/{id}/cancel", s.cancelBookingHandler)
			r.Post("/{id}/send-confirmation", s.sendBookingConfirmationHandler)
		})

		r.Get("/contacts", s.listContactsHandler)
		r.Get("/conversations/{phone}", s.conversationHistoryHandler)
		r.Post("/conversations/{phone}/send", s.manualSendHandler)

		r.Get("/analytics", s.analyticsHandler)

		r.Post("/webhook/whatsapp", s.webhookHandler(models.ChannelWhatsApp))
		r.Get("/webhook/whatsapp", s.webhookLivenessHandler(models.ChannelWhatsApp))
		r.Post("/webhook/sms", s.webhookHandler(models.ChannelSMS))
		r.Get("/webhook/sms", s.webhookLivenessHandler(models.ChannelSMS))
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Start: graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Server.Start: API listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("Server.Start: API stopped")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("Server: request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Backend != nil {
		if err := s.deps.Backend.Ping(r.Context()); err != nil {
			slog.Error("Server.healthHandler: store ping failed", "error", err)
			writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("store unavailable"))
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

func (s *Server) analyticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Backend.Stats(r.Context(), s.now())
	if err != nil {
		writeServiceError(w, "analyticsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}
