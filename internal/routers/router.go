package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/parley-chat/parley/internal/handlers"
	"github.com/parley-chat/parley/internal/middleware"
	"github.com/parley-chat/parley/internal/ws"
)

func NewRouter(wsHandler *ws.Handler, idHandler *handlers.IdentityHandler, healthHandler *handlers.HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.WithRequestId)

	r.Get("/healthz", handlers.WrapHandler(healthHandler.Health))
	r.Get("/stats", handlers.WrapHandler(healthHandler.Stats))
	r.Post("/identity", handlers.WrapHandler(idHandler.Issue))
	r.Handle("/ws", wsHandler)

	return r
}
