package user

import "github.com/go-chi/chi/v5"

// Mount registers the user management routes.
func Mount(r chi.Router, handler *Handler) {
	handler.RegisterRoutes(r)
}
