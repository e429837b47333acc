package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	// long-lived connections are not bound by the request timeout
	router.Get("/api/sync/events", h.streamEvents)
	if h.relay != nil {
		router.Handle("/ws/relay", h.relay)
	}

	router.Group(func(r chi.Router) {
		if h.requestTimeout > 0 {
			r.Use(middleware.Timeout(h.requestTimeout))
		}

		r.Get("/api/version", h.getServerVersion)

		r.Get("/api/sync/status", h.getStatus)
		r.Post("/api/sync/broadcast", h.broadcast)
		r.Post("/api/sync/reconnect", h.reconnect)

		r.Post("/api/session/login", h.login)
		r.Post("/api/session/logout", h.logout)
	})

	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}
