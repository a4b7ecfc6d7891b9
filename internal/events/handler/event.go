package handler

import (
	"encoding/json"
	"net/http"

	"eventbook/internal/events/service"
	httputil "eventbook/pkg/http"
	"eventbook/pkg/logger"
	"eventbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type EventHandler struct {
	service service.EventService
	log     *logger.Logger
}

func NewEventHandler(service service.EventService, log *logger.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		log:     log,
	}
}

type createEventRequest struct {
	model.Event
	Slots []model.SlotInput `json:"slots"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	event := req.Event
	event.CreatorID = userID

	view, err := h.service.Create(r.Context(), &event, req.Slots)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, view)
}

func (h *EventHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	view, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, view)
}

func (h *EventHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, views, total, limit, int(offset))
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var updates model.EventUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	view, err := h.service.Update(r.Context(), userID, id, &updates)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, view)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *EventHandler) ListSlots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	availability, err := h.service.ListSlots(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, availability)
}

func (h *EventHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/events", h.Create)
	router.GET("/api/v1/events", h.GetAll)
	router.GET("/api/v1/events/id/:id", h.GetByID)
	router.PATCH("/api/v1/events/id/:id", h.Update)
	router.DELETE("/api/v1/events/id/:id", h.Delete)
	router.GET("/api/v1/events/id/:id/slots", h.ListSlots)
}
