package contactlog

import "github.com/go-chi/chi/v5"

// Mount registers the contact-log routes.
func Mount(r chi.Router, handler *Handler) {
	handler.RegisterRoutes(r)
}
