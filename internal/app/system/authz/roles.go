// internal/app/system/authz/roles.go
package authz

import (
	"net/http"

	"github.com/dalemusser/dashhub/internal/domain/models"
)

// HasAnyRole reports whether the current principal holds any of roles.
// Returns false if no principal is present.
func HasAnyRole(r *http.Request, roles ...models.Role) bool {
	role, _, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, want := range roles {
		if role == want {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the current principal is an admin.
func IsAdmin(r *http.Request) bool {
	return HasAnyRole(r, models.RoleAdmin)
}

// Role returns the current principal's role and whether a principal is present.
func Role(r *http.Request) (models.Role, bool) {
	role, _, _, ok := UserCtx(r)
	return role, ok
}
