// Package signin turns a provider assertion into a session credential.
//
// It is the single login path shared by POST /auth/external-login and the
// server-side Google callback: verify the assertion, upsert the principal,
// issue a credential.
package signin

import (
	"context"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/identity"
	"github.com/dalemusser/dashhub/internal/app/system/metrics"
	"github.com/dalemusser/dashhub/internal/app/system/session"
	"github.com/dalemusser/dashhub/internal/domain/models"
	"go.uber.org/zap"
)

// Directory upserts the principal behind verified claims.
type Directory interface {
	UpsertOnLogin(ctx context.Context, c identity.Claims) (*models.User, error)
}

// Issuer issues session credentials.
type Issuer interface {
	Issue(principalID string) (session.Token, error)
}

// Service runs logins.
type Service struct {
	verifier identity.Verifier
	dir      Directory
	sessions Issuer
	log      *zap.Logger
}

// New constructs a Service.
func New(verifier identity.Verifier, dir Directory, sessions Issuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{verifier: verifier, dir: dir, sessions: sessions, log: logger}
}

// Result is a completed login.
type Result struct {
	Claims identity.Claims // set once the assertion verified, even on later failure
	User   *models.User
	Token  session.Token
}

// SignIn verifies assertion and returns a session for its principal.
//
// Errors are InvalidAssertion when the provider rejects the assertion,
// AccountInactive when the principal is deactivated or removed, and
// InternalError otherwise.
func (s *Service) SignIn(ctx context.Context, assertion string) (Result, error) {
	var res Result

	claims, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		s.observe(err)
		return res, err
	}
	res.Claims = claims

	u, err := s.dir.UpsertOnLogin(ctx, claims)
	if err != nil {
		s.observe(err)
		return res, err
	}
	res.User = u

	tok, err := s.sessions.Issue(u.ID.Hex())
	if err != nil {
		metrics.ObserveLogin(metrics.LoginError)
		return res, apperr.Wrap(apperr.InternalError, "issue session", err)
	}
	res.Token = tok

	metrics.ObserveLogin(metrics.LoginSuccess)
	s.log.Info("user signed in",
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", string(u.Role)))
	return res, nil
}

func (s *Service) observe(err error) {
	switch apperr.KindOf(err) {
	case apperr.InvalidAssertion:
		metrics.ObserveLogin(metrics.LoginRejected)
	case apperr.AccountInactive:
		metrics.ObserveLogin(metrics.LoginInactive)
	default:
		metrics.ObserveLogin(metrics.LoginError)
	}
}
