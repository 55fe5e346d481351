package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *Service) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	r.Post("/reindex", h.Reindex)
	r.Get("/coverage", h.Coverage)
	r.Get("/citations", h.Citations)
	r.Get("/files", h.Files)
	r.Get("/staleness", h.Staleness)
	r.Get("/status", h.Status)
	r.Get("/knowledge/search", h.SearchKnowledge)

	return r
}
