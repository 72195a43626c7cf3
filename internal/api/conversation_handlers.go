package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// manualSendRequest is the body of POST /conversations/{phone}/send.
type manualSendRequest struct {
	Message string         `json:"message"`
	Channel models.Channel `json:"channel,omitempty"`
}

func (s *Server) listContactsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	contacts, err := s.deps.Conversations.Contacts(r.Context(), limit)
	if err != nil {
		writeServiceError(w, "listContactsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(contacts))
}

func (s *Server) conversationHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	msgs, err := s.deps.Conversations.History(r.Context(), chi.URLParam(r, "phone"), limit)
	if err != nil {
		writeServiceError(w, "conversationHistoryHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(msgs))
}

func (s *Server) manualSendHandler(w http.ResponseWriter, r *http.Request) {
	var req manualSendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.deps.Conversations.ManualSend(r.Context(), chi.URLParam(r, "phone"), req.Channel, req.Message)
	if err != nil {
		writeServiceError(w, "manualSendHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent", res))
}
