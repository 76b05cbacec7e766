package stubd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.MiddlewareLogger)
	r.Get("/api/tasks", s.HandlerListTasks)
	r.Post("/api/tasks", s.HandlerCommissionTask)
	r.Delete("/api/tasks/{id}", s.HandlerCancelTask)
	r.Get("/api/products", s.HandlerListProducts)
	r.Get("/api/reddit/product/{id}/{mode}", s.HandlerGetInteraction)
	r.Post("/api/reddit/product/{id}/{mode}", s.HandlerSubmitInteraction)
	r.Get("/ws/tasks", s.hub.HandlerStream)
	return r
}
