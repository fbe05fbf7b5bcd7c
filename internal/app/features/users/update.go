// internal/app/features/users/update.go
package users

import (
	"net/http"

	"github.com/dalemusser/dashhub/internal/app/system/authz"
	"github.com/dalemusser/dashhub/internal/app/system/directory"
	"github.com/dalemusser/dashhub/internal/app/system/jsonio"
	"github.com/dalemusser/dashhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

// HandleUpdate handles PUT /users/{id}. Only the supplied fields change.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var p directory.UserPatch
	if err := jsonio.Decode(w, r, &p); err != nil {
		h.ErrLog.Write(w, r, "update user", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "update user")
	defer cancel()

	// Needed to tell a status flip from a re-send of the same value.
	var wasActive bool
	if p.IsActive != nil {
		before, err := h.Dir.Load(ctx, id)
		if err != nil {
			h.ErrLog.Write(w, r, "update user", err)
			return
		}
		wasActive = before.IsActive
	}

	u, err := h.Dir.Update(ctx, id, p)
	if err != nil {
		h.ErrLog.Write(w, r, "update user", err)
		return
	}

	if _, _, actorID, ok := authz.UserCtx(r); ok {
		if fields := suppliedFields(p); len(fields) > 0 {
			h.AuditLog.UserUpdated(ctx, r, actorID, u.ID, fields)
		}
		if p.IsActive != nil && wasActive != u.IsActive {
			if u.IsActive {
				h.AuditLog.UserEnabled(ctx, r, actorID, u.ID)
			} else {
				h.AuditLog.UserDisabled(ctx, r, actorID, u.ID)
			}
		}
	}

	jsonio.Write(w, http.StatusOK, u)
}

// suppliedFields names the patch fields the client sent.
func suppliedFields(p directory.UserPatch) []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.Name != nil, "name")
	add(p.Email != nil, "email")
	add(p.Role != nil, "role")
	add(p.Department != nil, "department")
	add(p.PhoneNumber != nil, "phoneNumber")
	add(p.JoinDate != nil, "joinDate")
	add(p.IsActive != nil, "isActive")
	return out
}
