// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/dashhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /users router. The caller mounts it behind the auth
// guard; each route then checks its own capability.
//
//	r.With(guard.Middleware).Mount("/users", users.Routes(h))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.With(authz.RequireCapability(authz.ViewUsers)).Get("/", h.ServeList)
	r.With(authz.RequireCapability(authz.ViewUsers)).Get("/summary", h.ServeSummary)
	r.With(authz.RequireCapability(authz.CreateUsers)).Post("/", h.HandleCreate)
	r.With(authz.RequireCapability(authz.EditUsers)).Put("/{id}", h.HandleUpdate)
	r.With(authz.RequireCapability(authz.DeleteUsers)).Delete("/{id}", h.HandleDelete)

	return r
}
