// internal/app/features/userinfo/handler.go
package userinfo

import (
	"net/http"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/auth"
	"github.com/dalemusser/dashhub/internal/app/system/authz"
	"github.com/dalemusser/dashhub/internal/app/system/jsonio"
)

// Handler serves the authenticated principal's own view.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

type meResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         string   `json:"role"`
	Department   string   `json:"department"`
	Capabilities []string `json:"capabilities"`
}

// ServeMe returns the current principal and what its role may do.
//
//	{ "id": "...", "name": "...", "email": "...", "role": "editor",
//	  "department": "IT", "capabilities": ["view_users", ...] }
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.CurrentUser(r)
	if !ok {
		apperr.Write(w, apperr.New(apperr.Unauthenticated, "no credential supplied"))
		return
	}
	jsonio.Write(w, http.StatusOK, meResponse{
		ID:           p.ID,
		Name:         p.Name,
		Email:        p.Email,
		Role:         string(p.Role),
		Department:   string(p.Department),
		Capabilities: authz.Capabilities(r).Names(),
	})
}
