package authgoogle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	uierrors "github.com/dalemusser/dashhub/internal/app/features/errors"
	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/auditlog"
	"github.com/dalemusser/dashhub/internal/app/system/identity"
	"github.com/dalemusser/dashhub/internal/app/system/session"
	"github.com/dalemusser/dashhub/internal/app/system/signin"
	"github.com/dalemusser/dashhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type memStates struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memStates) Save(_ context.Context, state, returnURL string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[state] = returnURL
	return nil
}

func (s *memStates) Consume(_ context.Context, state string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, ok := s.m[state]
	delete(s.m, state)
	return ret, ok, nil
}

type stubAuth struct {
	gotAssertion string
	res          signin.Result
	err          error
}

func (a *stubAuth) SignIn(_ context.Context, assertion string) (signin.Result, error) {
	a.gotAssertion = assertion
	return a.res, a.err
}

var expires = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, auth *stubAuth) (*Handler, *memStates) {
	t.Helper()
	logger := zap.NewNop()
	states := &memStates{m: map[string]string{}}
	h := NewHandler(Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		BaseURL:      "http://localhost:8080",
		CookieKey:    "test-cookie-key-for-testing-only-0123",
	}, auth, states, uierrors.NewErrorLogger(logger), auditlog.New(nil, logger, auditlog.Config{}), logger)
	h.exchange = func(_ context.Context, code string) (*oauth2.Token, error) {
		if code != "good-code" {
			return nil, errors.New("invalid_grant")
		}
		return (&oauth2.Token{AccessToken: "access"}).WithExtra(map[string]interface{}{"id_token": "id-token-123"}), nil
	}
	return h, states
}

func successAuth() *stubAuth {
	return &stubAuth{res: signin.Result{
		Claims: identity.Claims{ExternalID: "g-1", Email: "ada@example.com"},
		User:   &models.User{ID: primitive.NewObjectID(), Email: "ada@example.com", Role: models.RoleViewer},
		Token:  session.Token{Value: "session-jwt", ExpiresAt: expires},
	}}
}

// begin runs GET /auth/google and returns the state and flow cookies.
func begin(t *testing.T, h *Handler, target string) (string, []*http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeLogin(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("ServeLogin status = %d, body %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	if loc.Host != "accounts.google.com" {
		t.Errorf("redirect host = %q", loc.Host)
	}
	if got := loc.Query().Get("redirect_uri"); got != "http://localhost:8080/auth/google/callback" {
		t.Errorf("redirect_uri = %q", got)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("no state in redirect")
	}
	return state, rec.Result().Cookies()
}

func callback(h *Handler, q url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+q.Encode(), nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeCallback(rec, req)
	return rec
}

func assertLoginError(t *testing.T, rec *httptest.ResponseRecorder, code string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got, want := rec.Header().Get("Location"), "/login?error="+code; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

func TestIsConfigured(t *testing.T) {
	h, _ := newTestHandler(t, successAuth())
	if !h.IsConfigured() {
		t.Error("IsConfigured() = false with client ID and secret")
	}

	bare := NewHandler(Config{}, successAuth(), &memStates{m: map[string]string{}},
		uierrors.NewErrorLogger(zap.NewNop()), nil, zap.NewNop())
	if bare.IsConfigured() {
		t.Error("IsConfigured() = true without credentials")
	}

	rec := httptest.NewRecorder()
	bare.ServeLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured ServeLogin status = %d, want 404", rec.Code)
	}
}

func TestServeLogin_SavesStateAndReturnURL(t *testing.T) {
	h, states := newTestHandler(t, successAuth())
	state, cookies := begin(t, h, "/auth/google?return=/reports")

	if got := states.m[state]; got != "/reports" {
		t.Errorf("saved return URL = %q, want /reports", got)
	}
	if len(cookies) == 0 || cookies[0].Name != cookieName {
		t.Fatalf("flow cookie not set: %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("flow cookie should be HttpOnly")
	}
}

func TestServeLogin_RejectsOffsiteReturn(t *testing.T) {
	h, states := newTestHandler(t, successAuth())
	state, _ := begin(t, h, "/auth/google?return=https://evil.example.com/")
	if got := states.m[state]; got != "/" {
		t.Errorf("saved return URL = %q, want /", got)
	}
}

func TestCallback_SuccessThenCollect(t *testing.T) {
	auth := successAuth()
	h, states := newTestHandler(t, auth)
	state, cookies := begin(t, h, "/auth/google?return=/users")

	rec := callback(h, url.Values{"state": {state}, "code": {"good-code"}}, cookies)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/users" {
		t.Fatalf("callback = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if auth.gotAssertion != "id-token-123" {
		t.Errorf("SignIn assertion = %q", auth.gotAssertion)
	}
	if _, ok := states.m[state]; ok {
		t.Error("state should be consumed")
	}

	flow := rec.Result().Cookies()
	req := httptest.NewRequest(http.MethodGet, "/auth/google/session", nil)
	for _, c := range flow {
		req.AddCookie(c)
	}
	got := httptest.NewRecorder()
	h.ServeSession(got, req)
	if got.Code != http.StatusOK {
		t.Fatalf("ServeSession status = %d, body %s", got.Code, got.Body.String())
	}
	var body sessionResponse
	if err := json.Unmarshal(got.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SessionToken != "session-jwt" || !body.ExpiresAt.Equal(expires) {
		t.Errorf("session = %+v", body)
	}

	cleared := false
	for _, c := range got.Result().Cookies() {
		if c.Name == cookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("ServeSession should expire the flow cookie")
	}
}

func TestCallback_ReplayedStateRejected(t *testing.T) {
	h, _ := newTestHandler(t, successAuth())
	state, cookies := begin(t, h, "/auth/google")

	callback(h, url.Values{"state": {state}, "code": {"good-code"}}, cookies)
	rec := callback(h, url.Values{"state": {state}, "code": {"good-code"}}, cookies)
	assertLoginError(t, rec, "invalid_state")
}

func TestCallback_StateNotBoundToBrowser(t *testing.T) {
	h, _ := newTestHandler(t, successAuth())
	state, _ := begin(t, h, "/auth/google")

	rec := callback(h, url.Values{"state": {state}, "code": {"good-code"}}, nil)
	assertLoginError(t, rec, "invalid_state")
}

func TestCallback_ProviderDenied(t *testing.T) {
	h, _ := newTestHandler(t, successAuth())
	rec := callback(h, url.Values{"error": {"access_denied"}}, nil)
	assertLoginError(t, rec, "google_denied")
}

func TestCallback_ExchangeFailure(t *testing.T) {
	h, _ := newTestHandler(t, successAuth())
	state, cookies := begin(t, h, "/auth/google")
	rec := callback(h, url.Values{"state": {state}, "code": {"bad-code"}}, cookies)
	assertLoginError(t, rec, "token_exchange")
}

func TestCallback_MissingIDToken(t *testing.T) {
	h, _ := newTestHandler(t, successAuth())
	h.exchange = func(context.Context, string) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "access"}, nil
	}
	state, cookies := begin(t, h, "/auth/google")
	rec := callback(h, url.Values{"state": {state}, "code": {"good-code"}}, cookies)
	assertLoginError(t, rec, "token_exchange")
}

func TestCallback_SignInFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"rejected", apperr.New(apperr.InvalidAssertion, "Invalid Google token"), "invalid_assertion"},
		{"inactive", apperr.Inactive("Account is deactivated. Please contact an administrator."), "account_inactive"},
		{"internal", errors.New("mongo down"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, &stubAuth{err: tt.err})
			state, cookies := begin(t, h, "/auth/google")
			rec := callback(h, url.Values{"state": {state}, "code": {"good-code"}}, cookies)
			assertLoginError(t, rec, tt.code)
		})
	}
}

func TestServeSession_NothingPending(t *testing.T) {
	h, _ := newTestHandler(t, successAuth())
	rec := httptest.NewRecorder()
	h.ServeSession(rec, httptest.NewRequest(http.MethodGet, "/auth/google/session", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No pending sign-in.") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
