package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/BTreeMap/SalesPipe/internal/messaging"
	"github.com/BTreeMap/SalesPipe/internal/models"
	"github.com/BTreeMap/SalesPipe/internal/twilioapi"
)

// Replies sent to the contact when the webhook cannot produce a real answer.
const (
	EmptyMessageReply = "I didn't receive a message. Could you try again?"
	BadSenderReply    = "Sorry, something went wrong."
	HandlerErrorReply = "Sorry, I encountered an error. Please try again."
)

// webhookHandler handles Twilio inbound message posts for one channel and
// answers inline with TwiML.
func (s *Server) webhookHandler(ch models.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			slog.Warn("Server.webhookHandler: failed to parse form", "error", err, "channel", ch)
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		if s.validator != nil && !s.validator.Validate(r) {
			slog.Warn("Server.webhookHandler: invalid Twilio signature", "channel", ch, "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}

		from := r.PostForm.Get("From")
		body := strings.TrimSpace(r.PostForm.Get("Body"))
		sid := r.PostForm.Get("MessageSid")
		reqID := middleware.GetReqID(r.Context())
		slog.Info("Server.webhookHandler: inbound message", "channel", ch, "from", from, "message_sid", sid, "request_id", reqID)

		if body == "" {
			writeTwiML(w, EmptyMessageReply)
			return
		}
		recipient, err := messaging.CanonicalizeRecipient(ch, from)
		if err != nil {
			slog.Warn("Server.webhookHandler: invalid sender", "error", err, "from", from)
			writeTwiML(w, BadSenderReply)
			return
		}

		ctx := r.Context()
		if sid != "" && s.deps.Backend != nil {
			fresh, err := s.deps.Backend.RecordInbound(ctx, sid, recipient, s.now())
			if err != nil {
				slog.Warn("Server.webhookHandler: dedup check failed, processing anyway", "error", err, "message_sid", sid)
			} else if !fresh {
				slog.Info("Server.webhookHandler: duplicate delivery skipped", "message_sid", sid)
				writeTwiML(w, "")
				return
			}
		}

		reply, err := s.deps.Replies.HandleReply(ctx, recipient, body, ch)
		if err != nil {
			slog.Error("Server.webhookHandler: reply handler failed", "error", err, "from", recipient, "request_id", reqID)
			writeTwiML(w, HandlerErrorReply)
			return
		}
		if sid != "" && s.deps.Backend != nil {
			if err := s.deps.Backend.MarkProcessed(ctx, sid, s.now()); err != nil {
				slog.Warn("Server.webhookHandler: mark processed failed", "error", err, "message_sid", sid)
			}
		}
		writeTwiML(w, reply)
	}
}

func (s *Server) webhookLivenessHandler(ch models.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("webhook ready", map[string]string{"channel": string(ch)}))
	}
}

// writeTwiML writes a TwiML response carrying body, or an empty response when body is "".
func writeTwiML(w http.ResponseWriter, body string) {
	var (
		doc string
		err error
	)
	if body == "" {
		doc, err = twilioapi.EmptyReply()
	} else {
		doc, err = twilioapi.MessageReply(body)
	}
	if err != nil {
		slog.Error("Server.writeTwiML: failed to render TwiML", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		slog.Error("Server.writeTwiML: failed to write response", "error", err)
	}
}
