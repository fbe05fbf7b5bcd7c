// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /auth/me on the supplied router, which must
// already run the auth guard.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/auth/me", h.ServeMe)
}
