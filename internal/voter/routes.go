package voter

import "github.com/go-chi/chi/v5"

// Mount registers the voter directory routes.
func Mount(r chi.Router, handler *Handler) {
	handler.RegisterRoutes(r)
}
