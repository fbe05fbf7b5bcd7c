// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// MountRoutes registers POST /auth/external-login. The route is public;
// callers put the login rate limiter in front of it.
func MountRoutes(r chi.Router, h *Handler) {
	r.Post("/auth/external-login", h.HandleExternalLogin)
}
