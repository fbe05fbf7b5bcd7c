// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"time"

	uierrors "github.com/dalemusser/dashhub/internal/app/features/errors"
	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/auditlog"
	"github.com/dalemusser/dashhub/internal/app/system/jsonio"
	"github.com/dalemusser/dashhub/internal/app/system/signin"
	"github.com/dalemusser/dashhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	cookieName = "dashhub_google"
	stateTTL   = 10 * time.Minute

	keyState   = "state"
	keyToken   = "session_token"
	keyExpires = "session_expires"
)

// Authenticator runs the login path. *signin.Service satisfies it.
type Authenticator interface {
	SignIn(ctx context.Context, assertion string) (signin.Result, error)
}

// StateStore holds single-use OAuth2 states. *oauthstate.Store satisfies it.
type StateStore interface {
	Save(ctx context.Context, state, returnURL string, expiresAt time.Time) error
	Consume(ctx context.Context, state string) (returnURL string, ok bool, err error)
}

// Config configures the code flow.
type Config struct {
	ClientID      string
	ClientSecret  string
	BaseURL       string // callback is BaseURL + "/auth/google/callback"
	CookieKey     string // signs and encrypts the flow cookie
	SecureCookie  bool
	LoginPath     string // failures redirect here with ?error=<code>; default "/login"
	DefaultReturn string
}

// Handler handles the server-side Google OAuth code flow.
type Handler struct {
	Auth     Authenticator
	States   StateStore
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger

	oauth         *oauth2.Config
	cookies       *sessions.CookieStore
	loginPath     string
	defaultReturn string
	exchange      func(ctx context.Context, code string) (*oauth2.Token, error)
}

// NewHandler creates a Google OAuth handler.
func NewHandler(cfg Config, auth Authenticator, states StateStore, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.BaseURL + "/auth/google/callback",
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}

	block := sha256.Sum256([]byte("block:" + cfg.CookieKey))
	store := sessions.NewCookieStore([]byte(cfg.CookieKey), block[:])
	store.Options = &sessions.Options{
		Path:     "/auth/google",
		MaxAge:   int(stateTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	h := &Handler{
		Auth:          auth,
		States:        states,
		Log:           logger,
		ErrLog:        errLog,
		AuditLog:      audit,
		oauth:         oc,
		cookies:       store,
		loginPath:     cfg.LoginPath,
		defaultReturn: cfg.DefaultReturn,
	}
	if h.loginPath == "" {
		h.loginPath = "/login"
	}
	if h.defaultReturn == "" {
		h.defaultReturn = "/"
	}
	h.exchange = func(ctx context.Context, code string) (*oauth2.Token, error) {
		return oc.Exchange(ctx, code)
	}
	return h
}

// IsConfigured reports whether client credentials are present.
func (h *Handler) IsConfigured() bool {
	return h.oauth.ClientID != "" && h.oauth.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Redirects to Google's consent screen.                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		apperr.Write(w, apperr.New(apperr.NotFound, "Google sign-in is not configured."))
		return
	}

	state, err := generateState()
	if err != nil {
		h.ErrLog.Write(w, r, "generate oauth state", err)
		return
	}
	returnURL := urlutil.SafeReturn(query.Get(r, "return"), "", h.defaultReturn)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.States.Save(ctx, state, returnURL, time.Now().UTC().Add(stateTTL)); err != nil {
		h.ErrLog.Write(w, r, "save oauth state", err)
		return
	}

	sess := h.session(r)
	sess.Values[keyState] = state
	if err := sess.Save(r, w); err != nil {
		h.ErrLog.Write(w, r, "save flow cookie", err)
		return
	}

	dest := h.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
	h.Log.Debug("initiating Google OAuth flow", zap.String("return_url", returnURL))
	http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Exchanges the code, signs in with the returned ID token and hands the        |
| session credential to GET /auth/google/session through the flow cookie.      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		h.redirectToLogin(w, r, "google_denied")
		return
	}

	sess := h.session(r)
	state := query.Get(r, "state")
	bound, _ := sess.Values[keyState].(string)
	if state == "" || state != bound {
		h.Log.Warn("OAuth state missing or not bound to this browser")
		h.redirectToLogin(w, r, "invalid_state")
		return
	}
	delete(sess.Values, keyState)

	stateCtx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	returnURL, ok, err := h.States.Consume(stateCtx, state)
	cancel()
	if err != nil {
		h.ErrLog.Log(r, "consume oauth state", err)
		h.redirectToLogin(w, r, "internal")
		return
	}
	if !ok {
		h.Log.Warn("OAuth state expired or already used")
		h.redirectToLogin(w, r, "invalid_state")
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		h.redirectToLogin(w, r, "invalid_code")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "google callback")
	defer cancel()

	tok, err := h.exchange(ctx, code)
	if err != nil {
		h.ErrLog.Log(r, "exchange oauth code", err)
		h.redirectToLogin(w, r, "token_exchange")
		return
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		h.Log.Warn("token response carried no id_token")
		h.redirectToLogin(w, r, "token_exchange")
		return
	}

	res, err := h.Auth.SignIn(ctx, idToken)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.InvalidAssertion:
			h.AuditLog.LoginFailedInvalidAssertion(ctx, r, message(err))
			h.redirectToLogin(w, r, "invalid_assertion")
		case apperr.AccountInactive:
			h.AuditLog.LoginFailedUserInactive(ctx, r, res.Claims.Email)
			h.redirectToLogin(w, r, "account_inactive")
		default:
			h.ErrLog.Log(r, "google sign-in", err)
			h.redirectToLogin(w, r, "internal")
		}
		return
	}

	sess.Values[keyToken] = res.Token.Value
	sess.Values[keyExpires] = res.Token.ExpiresAt.Unix()
	if err := sess.Save(r, w); err != nil {
		h.ErrLog.Log(r, "save flow cookie", err)
		h.redirectToLogin(w, r, "session")
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, res.User.ID, res.User.Email)
	h.Log.Info("user signed in via Google OAuth", zap.String("user_id", res.User.ID.Hex()))

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", h.defaultReturn), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/session                                                     |
| Returns the credential left by the callback, once.                           |
*─────────────────────────────────────────────────────────────────────────────*/

type sessionResponse struct {
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	token, _ := sess.Values[keyToken].(string)
	expires, _ := sess.Values[keyExpires].(int64)
	if token == "" {
		apperr.Write(w, apperr.New(apperr.Unauthenticated, "No pending sign-in."))
		return
	}

	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		h.ErrLog.Write(w, r, "clear flow cookie", err)
		return
	}
	jsonio.Write(w, http.StatusOK, sessionResponse{
		SessionToken: token,
		ExpiresAt:    time.Unix(expires, 0).UTC(),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// session returns the flow cookie session. A cookie that fails to decode is
// replaced with a fresh one.
func (h *Handler) session(r *http.Request) *sessions.Session {
	sess, err := h.cookies.Get(r, cookieName)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			h.Log.Debug("flow cookie invalid, using fresh session", zap.Error(err))
		} else {
			h.Log.Warn("flow cookie error, using fresh session", zap.Error(err))
		}
	}
	return sess
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.loginPath+"?error="+url.QueryEscape(code), http.StatusSeeOther)
}

// message is the client-facing message of err.
func message(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
