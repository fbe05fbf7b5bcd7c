// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/dashhub/internal/app/features/errors"
	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/auditlog"
	"github.com/dalemusser/dashhub/internal/app/system/authz"
	"github.com/dalemusser/dashhub/internal/app/system/jsonio"
	"github.com/dalemusser/dashhub/internal/app/system/signin"
	"github.com/dalemusser/dashhub/internal/app/system/timeouts"
	"github.com/dalemusser/dashhub/internal/domain/models"
	"go.uber.org/zap"
)

// Authenticator runs the login path. *signin.Service satisfies it.
type Authenticator interface {
	SignIn(ctx context.Context, assertion string) (signin.Result, error)
}

// Handler serves POST /auth/external-login.
type Handler struct {
	Auth     Authenticator
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

// NewHandler creates a login handler.
func NewHandler(auth Authenticator, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:     auth,
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

// loginRequest carries the provider assertion. Clients send it as "token";
// "assertion" is accepted too.
type loginRequest struct {
	Token     string `json:"token"`
	Assertion string `json:"assertion"`
}

func (in loginRequest) value() string {
	if s := strings.TrimSpace(in.Token); s != "" {
		return s
	}
	return strings.TrimSpace(in.Assertion)
}

type loginResponse struct {
	SessionToken string        `json:"sessionToken"`
	ExpiresAt    time.Time     `json:"expiresAt"`
	Principal    principalView `json:"principal"`
}

// principalView is the authenticated user as returned to the client.
type principalView struct {
	models.User
	Capabilities []string `json:"capabilities"`
}

// HandleExternalLogin exchanges a provider assertion for a session credential.
//
// 200 {sessionToken, expiresAt, principal}
// 400 InvalidAssertion when the assertion is missing or rejected
// 401 USER_INACTIVE when the account is deactivated or removed
// 500 when the identity provider is unreachable
func (h *Handler) HandleExternalLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.fail(w, r, apperr.Wrap(apperr.InvalidAssertion, "Google token is required", err), "")
		return
	}
	assertion := in.value()
	if assertion == "" {
		h.fail(w, r, apperr.New(apperr.InvalidAssertion, "Google token is required"), "")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "external login")
	defer cancel()

	res, err := h.Auth.SignIn(ctx, assertion)
	if err != nil {
		h.fail(w, r, err, res.Claims.Email)
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, res.User.ID, res.User.Email)

	jsonio.Write(w, http.StatusOK, loginResponse{
		SessionToken: res.Token.Value,
		ExpiresAt:    res.Token.ExpiresAt,
		Principal: principalView{
			User:         *res.User,
			Capabilities: authz.CapabilitiesOf(res.User.Role).Names(),
		},
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, email string) {
	ctx := r.Context()
	switch apperr.KindOf(err) {
	case apperr.InvalidAssertion:
		h.AuditLog.LoginFailedInvalidAssertion(ctx, r, reason(err))
	case apperr.AccountInactive:
		h.AuditLog.LoginFailedUserInactive(ctx, r, email)
	}
	h.ErrLog.Write(w, r, "external login", err)
}

// reason is the client-facing message of err, used as the audit detail.
func reason(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
