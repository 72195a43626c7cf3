package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

func (s *Server) createTriggerHandler(w http.ResponseWriter, r *http.Request) {
	var req models.TriggerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := s.deps.Triggers.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, "createTriggerHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated,
		models.ScheduledWithResult(fmt.Sprintf("Trigger %q scheduled for %s", t.Name, t.ScheduledAt.Format("2006-01-02 15:04:05 MST")), t))
}

func (s *Server) createDripCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DripCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	triggers, err := s.deps.Triggers.CreateDripCampaign(r.Context(), req)
	if err != nil {
		writeServiceError(w, "createDripCampaignHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated,
		models.ScheduledWithResult(fmt.Sprintf("Drip campaign %q scheduled with %d steps", req.Name, len(triggers)), triggers))
}

func (s *Server) listTriggersHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := models.TriggerFilter{
		Status:       models.TriggerStatus(strings.ToLower(q.Get("status"))),
		CampaignName: q.Get("campaign"),
		Recipient:    q.Get("recipient"),
		Limit:        limit,
	}
	triggers, err := s.deps.Triggers.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "listTriggersHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(triggers))
}

func (s *Server) getTriggerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := s.deps.Triggers.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "getTriggerHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(t))
}

func (s *Server) cancelTriggerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, changed, err := s.deps.Triggers.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, "cancelTriggerHandler", err)
		return
	}
	msg := "Trigger cancelled"
	if !changed {
		msg = fmt.Sprintf("Trigger already %s", t.Status)
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(msg, t))
}

func (s *Server) pauseTriggerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, changed, err := s.deps.Triggers.Pause(r.Context(), id)
	if err != nil {
		writeServiceError(w, "pauseTriggerHandler", err)
		return
	}
	if !changed {
		writeJSONResponse(w, http.StatusConflict, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage(fmt.Sprintf("Trigger is %s, only active triggers can be paused", t.Status)).
			WithResult(t).Build())
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Trigger paused", t))
}

func (s *Server) resumeTriggerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, changed, err := s.deps.Triggers.Resume(r.Context(), id)
	if err != nil {
		writeServiceError(w, "resumeTriggerHandler", err)
		return
	}
	if !changed {
		writeJSONResponse(w, http.StatusConflict, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage(fmt.Sprintf("Trigger is %s, only paused triggers can be resumed", t.Status)).
			WithResult(t).Build())
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Trigger resumed", t))
}

func (s *Server) cancelCampaignHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n, err := s.deps.Triggers.CancelCampaign(r.Context(), name)
	if err != nil {
		writeServiceError(w, "cancelCampaignHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(
		fmt.Sprintf("Cancelled %d triggers in campaign %q", n, name),
		map[string]interface{}{"campaign_name": name, "cancelled": n}))
}
