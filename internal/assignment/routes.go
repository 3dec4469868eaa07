package assignment

import "github.com/go-chi/chi/v5"

// Mount registers the assignment and roster routes.
func Mount(r chi.Router, handler *Handler) {
	handler.RegisterRoutes(r)
}
