// internal/app/features/status/routes.go
package status

import (
	"github.com/dalemusser/dashhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers GET /system/status on a router that already runs
// the auth guard.
func MountRoutes(r chi.Router, h *Handler) {
	r.With(authz.RequireCapability(authz.AccessSettings)).Get("/system/status", h.Serve)
}
