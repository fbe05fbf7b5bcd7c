// Package auth is the per-request gate in front of every protected route.
//
// A Guard extracts the bearer credential, validates it with the session
// issuer, then reloads the principal and re-checks that the account is
// still active. Only then is a read-only Principal attached to the request
// context for downstream handlers.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/metrics"
	"github.com/dalemusser/dashhub/internal/app/system/session"
	"github.com/dalemusser/dashhub/internal/domain/models"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Collaborators                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// CredentialValidator validates a raw session credential.
type CredentialValidator interface {
	Validate(raw string) (session.Claims, error)
}

// PrincipalLoader loads a non-deleted principal by ID. It returns an apperr
// NotFound error when no such principal exists.
type PrincipalLoader interface {
	Load(ctx context.Context, id string) (*models.User, error)
}

// Messages returned on guard failures.
const (
	msgNoCredential = "no credential supplied"
	msgBadToken     = "invalid or expired credential"
	msgNoPrincipal  = "principal not found"
	msgInactive     = "Account is inactive. Please contact administrator."
)

// CodeTokenExpired is attached to guard failures caused by an expired
// credential so clients can refresh instead of treating it as a hard failure.
const CodeTokenExpired = "TOKEN_EXPIRED"

/*─────────────────────────────────────────────────────────────────────────────*
| Guard                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// Guard authenticates requests.
type Guard struct {
	sessions CredentialValidator
	users    PrincipalLoader
	log      *zap.Logger
}

// NewGuard constructs a Guard.
func NewGuard(sessions CredentialValidator, users PrincipalLoader, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{sessions: sessions, users: users, log: logger}
}

// Authenticate resolves a raw credential to an active principal.
//
// Failures:
//   - empty credential          → Unauthenticated
//   - credential fails to verify → Unauthenticated (the TokenExpired or
//     TokenInvalid cause stays reachable through errors.Is)
//   - principal gone or deleted → Unauthenticated
//   - principal deactivated     → AccountInactive with code USER_INACTIVE
func (g *Guard) Authenticate(ctx context.Context, raw string) (*models.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperr.New(apperr.Unauthenticated, msgNoCredential)
	}

	claims, err := g.sessions.Validate(raw)
	if err != nil {
		e := apperr.Wrap(apperr.Unauthenticated, msgBadToken, err)
		if apperr.IsKind(err, apperr.TokenExpired) {
			e.Code = CodeTokenExpired
		}
		return nil, e
	}

	u, err := g.users.Load(ctx, claims.PrincipalID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.Wrap(apperr.Unauthenticated, msgNoPrincipal, err)
		}
		return nil, err
	}

	// The credential may predate a deactivation; check live status.
	if !u.IsActive {
		return nil, apperr.Inactive(msgInactive)
	}
	return u, nil
}

// Middleware authenticates the request's bearer credential and attaches the
// resolved Principal to its context. Failures are written as JSON errors and
// the chain stops.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := g.Authenticate(r.Context(), BearerToken(r))
		if err != nil {
			g.logFailure(r, err)
			apperr.Write(w, err)
			return
		}
		next.ServeHTTP(w, WithPrincipal(r, PrincipalOf(u)))
	})
}

func (g *Guard) logFailure(r *http.Request, err error) {
	metrics.ObserveGuardRejection(string(apperr.KindOf(err)))
	if apperr.KindOf(err) == apperr.InternalError {
		g.log.Error("authenticate request",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return
	}
	g.log.Debug("request not authenticated",
		zap.String("path", r.URL.Path),
		zap.String("kind", string(apperr.KindOf(err))))
}

// BearerToken returns the credential from an "Authorization: Bearer" header,
// or "" when there is none.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Principal in context                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// Principal is the read-only view of the authenticated user that handlers
// receive. It is a value copy; changing it has no effect on the directory.
type Principal struct {
	ID         string
	Name       string
	Email      string
	Role       models.Role
	Department models.Department
}

// PrincipalOf builds the request view of u.
func PrincipalOf(u *models.User) Principal {
	return Principal{
		ID:         u.ID.Hex(),
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Department: u.Department,
	}
}

type ctxKey struct{}

// WithPrincipal returns a shallow copy of r carrying p.
func WithPrincipal(r *http.Request, p Principal) *http.Request {
	return r.WithContext(ContextWithPrincipal(r.Context(), p))
}

// ContextWithPrincipal returns a child context carrying p.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// CurrentPrincipal returns the principal attached by the guard.
func CurrentPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// CurrentUser returns the principal attached to r by the guard.
func CurrentUser(r *http.Request) (Principal, bool) {
	return CurrentPrincipal(r.Context())
}

// RequireSignedIn rejects requests that carry no principal. Routes behind
// Guard.Middleware never hit this; it protects handlers mounted elsewhere.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			apperr.Write(w, apperr.New(apperr.Unauthenticated, msgNoCredential))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithTestUser attaches p to r. Used by handler tests.
func WithTestUser(r *http.Request, p Principal) *http.Request {
	return WithPrincipal(r, p)
}
