package handlers

import (
	"net/http"

	"github.com/parley-chat/parley/internal/apperr"
	"github.com/parley-chat/parley/internal/ws"
)

type HealthHandler struct {
	Hub *ws.Hub
}

func NewHealthHandler(hub *ws.Hub) *HealthHandler {
	return &HealthHandler{Hub: hub}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) *apperr.AppError {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	return nil
}

func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) *apperr.AppError {
	resp := CreateResponse("hub stats", h.Hub.Stats(), r.Header.Get("X-Request-ID"))
	writeJSON(w, http.StatusOK, resp)
	return nil
}
