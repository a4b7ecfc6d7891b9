package handler

import (
	"encoding/json"
	"net/http"

	"eventbook/internal/bookings/service"
	apperrors "eventbook/pkg/errors"
	httputil "eventbook/pkg/http"
	"eventbook/pkg/logger"
	"eventbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req model.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	booking, err := h.service.Register(r.Context(), userID, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, booking)
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.GetByID(r.Context(), userID, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, booking)
}

// List returns the bookings of one event when event_id is supplied,
// otherwise the caller's own bookings.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	eventID := r.URL.Query().Get("event_id")

	var bookings []*model.Booking
	var total int64
	if eventID != "" {
		bookings, total, err = h.service.ListByEvent(r.Context(), eventID, limit, offset)
	} else {
		var userID string
		userID, err = httputil.UserID(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		bookings, total, err = h.service.ListByUser(r.Context(), userID, limit, offset)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, bookings, total, limit, int(offset))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Cancel(r.Context(), userID, id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Membership(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	eventID := r.URL.Query().Get("event_id")
	if eventID == "" {
		httputil.WriteError(w, apperrors.InvalidInput("event_id query parameter is required"))
		return
	}

	member, err := h.service.IsMember(r.Context(), userID, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"is_member": member})
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Register)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.DELETE("/api/v1/bookings/id/:id", h.Cancel)
	router.GET("/api/v1/bookings/membership", h.Membership)
}
