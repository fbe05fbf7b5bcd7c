// internal/app/features/users/create.go
package users

import (
	"net/http"

	"github.com/dalemusser/dashhub/internal/app/system/authz"
	"github.com/dalemusser/dashhub/internal/app/system/directory"
	"github.com/dalemusser/dashhub/internal/app/system/jsonio"
	"github.com/dalemusser/dashhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HandleCreate handles POST /users. Responds 201 with the created user.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in directory.NewUser
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, "create user", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "create user")
	defer cancel()

	u, err := h.Dir.Create(ctx, in)
	if err != nil {
		h.ErrLog.Write(w, r, "create user", err)
		return
	}

	if _, _, actorID, ok := authz.UserCtx(r); ok {
		h.AuditLog.UserCreated(ctx, r, actorID, u.ID, string(u.Role))
	}
	h.Log.Info("user created",
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", string(u.Role)))

	jsonio.Write(w, http.StatusCreated, u)
}
