package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the read-only reporting routes.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/archives", h.ListArchives)
	r.Get("/directories", h.ListDirectories)

	return r
}
