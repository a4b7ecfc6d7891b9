package handler

import (
	"encoding/json"
	"net/http"

	"eventbook/internal/teams/service"
	httputil "eventbook/pkg/http"
	"eventbook/pkg/logger"
	"eventbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type TeamHandler struct {
	service service.TeamService
	log     *logger.Logger
}

func NewTeamHandler(service service.TeamService, log *logger.Logger) *TeamHandler {
	return &TeamHandler{
		service: service,
		log:     log,
	}
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var team model.Team
	if err := json.NewDecoder(r.Body).Decode(&team); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	created, err := h.service.Create(r.Context(), userID, &team)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, created)
}

func (h *TeamHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	team, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, team)
}

func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req model.TeamInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.service.Invite(r.Context(), userID, ps.ByName("id"), &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *TeamHandler) JoinByInvite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	team, err := h.service.JoinByInvite(r.Context(), userID, ps.ByName("token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, team)
}

func (h *TeamHandler) JoinByLink(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	team, err := h.service.JoinByLink(r.Context(), userID, ps.ByName("token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, team)
}

func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	members, total, err := h.service.Members(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, members, total, limit, int(offset))
}

func (h *TeamHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/teams", h.Create)
	router.GET("/api/v1/teams/id/:id", h.GetByID)
	router.POST("/api/v1/teams/id/:id/invite", h.Invite)
	router.GET("/api/v1/teams/id/:id/members", h.Members)
	router.POST("/api/v1/teams/join/invite/:token", h.JoinByInvite)
	router.POST("/api/v1/teams/join/link/:token", h.JoinByLink)
}
