package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

func (s *Server) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.deps.Bookings.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, "createBookingHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated,
		models.SuccessWithMessage(fmt.Sprintf("Booking %s created", b.ConfirmationCode), b))
}

func (s *Server) listBookingsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	bookings, err := s.deps.Bookings.List(r.Context(), models.BookingFilter{
		PhoneNumber: q.Get("phone"),
		Status:      models.BookingStatus(strings.ToLower(q.Get("status"))),
		Limit:       limit,
	})
	if err != nil {
		writeServiceError(w, "listBookingsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(bookings))
}

func (s *Server) getBookingHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	b, err := s.deps.Bookings.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "getBookingHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(b))
}

func (s *Server) getBookingByCodeHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Bookings.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, "getBookingByCodeHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(b))
}

func (s *Server) confirmBookingHandler(w http.ResponseWriter, r *http.Request) {
	s.bookingTransition(w, r, "confirmed", s.deps.Bookings.Confirm)
}

func (s *Server) cancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	s.bookingTransition(w, r, "cancelled", s.deps.Bookings.Cancel)
}

// bookingTransition answers 409 with the unchanged booking when it was not pending.
func (s *Server) bookingTransition(w http.ResponseWriter, r *http.Request, verb string,
	fn func(ctx context.Context, id int64) (*models.Booking, bool, error)) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	b, changed, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, "bookingTransition", err)
		return
	}
	if !changed {
		writeJSONResponse(w, http.StatusConflict, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage(fmt.Sprintf("Booking is already %s", b.Status)).
			WithResult(b).Build())
		return
	}
	writeJSONResponse(w, http.StatusOK,
		models.SuccessWithMessage(fmt.Sprintf("Booking %s %s", b.ConfirmationCode, verb), b))
}

func (s *Server) sendBookingConfirmationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	b, res, err := s.deps.Bookings.SendConfirmation(r.Context(), id)
	if err != nil {
		writeServiceError(w, "sendBookingConfirmationHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(
		fmt.Sprintf("Confirmation request sent for booking %s", b.ConfirmationCode),
		map[string]interface{}{"booking": b, "send": res}))
}
