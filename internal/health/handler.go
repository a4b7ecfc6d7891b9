package health

import (
	"net/http"

	httputil "eventbook/pkg/http"
	"eventbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo"
)

type Handler struct {
	mongo *mongo.Client
	log   *logger.Logger
}

func NewHandler(mongoClient *mongo.Client, log *logger.Logger) *Handler {
	return &Handler{
		mongo: mongoClient,
		log:   log,
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/health", h.Health)
	router.HandlerFunc(http.MethodGet, "/ready", h.Ready)
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether dependencies are reachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.mongo.Ping(r.Context(), nil); err != nil {
		h.log.Error("Readiness check failed", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
