// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/dashhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers GET /audit-events on a router that already runs
// the auth guard. Access is restricted to principals who can reach settings.
func MountRoutes(r chi.Router, h *Handler) {
	r.With(authz.RequireCapability(authz.AccessSettings)).Get("/audit-events", h.ServeList)
}
