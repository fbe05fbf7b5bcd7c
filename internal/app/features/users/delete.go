// internal/app/features/users/delete.go
package users

import (
	"net/http"

	"github.com/dalemusser/dashhub/internal/app/system/authz"
	"github.com/dalemusser/dashhub/internal/app/system/jsonio"
	"github.com/dalemusser/dashhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type messageResponse struct {
	Message string `json:"message"`
}

// HandleDelete handles DELETE /users/{id}. The user is soft-deleted; a
// second delete answers 404.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete user")
	defer cancel()

	if err := h.Dir.SoftDelete(ctx, id); err != nil {
		h.ErrLog.Write(w, r, "delete user", err)
		return
	}

	if _, _, actorID, ok := authz.UserCtx(r); ok {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			h.AuditLog.UserDeleted(ctx, r, actorID, oid)
		}
	}
	h.Log.Info("user deleted", zap.String("user_id", id))

	jsonio.Write(w, http.StatusOK, messageResponse{Message: "User deleted successfully"})
}
