// internal/app/features/users/list.go
package users

import (
	"net/http"

	"github.com/dalemusser/dashhub/internal/app/system/jsonio"
	"github.com/dalemusser/dashhub/internal/app/system/timeouts"
)

// ServeList handles GET /users: every non-deleted user, sorted by name.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list users")
	defer cancel()

	list, err := h.Dir.List(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, "list users", err)
		return
	}
	jsonio.Write(w, http.StatusOK, list)
}

// ServeSummary handles GET /users/summary.
func (h *Handler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "users summary")
	defer cancel()

	sum, err := h.Dir.Summary(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, "users summary", err)
		return
	}
	jsonio.Write(w, http.StatusOK, sum)
}
