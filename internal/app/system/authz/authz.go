// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/auth"
	"github.com/dalemusser/dashhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the current principal's role, name, ObjectID and a found
// flag. With no principal, or a malformed ID, it returns "", "",
// NilObjectID, false, so ok=true always means a usable ObjectID.
func UserCtx(r *http.Request) (role models.Role, name string, userID primitive.ObjectID, ok bool) {
	p, ok := auth.CurrentUser(r)
	if !ok {
		return "", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		// Fail closed.
		return "", "", primitive.NilObjectID, false
	}
	return p.Role, p.Name, userID, true
}

// Capabilities returns the capability set of the current principal.
// Requests without a principal get the empty set.
func Capabilities(r *http.Request) CapabilitySet {
	p, ok := auth.CurrentUser(r)
	if !ok {
		return 0
	}
	return CapabilitiesOf(p.Role)
}

// HasCapability reports whether the current principal's role grants c.
func HasCapability(r *http.Request, c Capability) bool {
	return Capabilities(r).Has(c)
}

// RequireCapability rejects requests whose principal lacks c with 403.
// It must run after the auth guard; a request with no principal gets 401.
func RequireCapability(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.CurrentUser(r); !ok {
				apperr.Write(w, apperr.New(apperr.Unauthenticated, "no credential supplied"))
				return
			}
			if !HasCapability(r, c) {
				apperr.Write(w, apperr.New(apperr.Forbidden, "Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
