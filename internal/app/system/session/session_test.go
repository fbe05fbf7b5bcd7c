package session_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/session"
	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-session-secret-must-be-32-chars!"

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newIssuer(t *testing.T, c *clock, opts ...session.Option) *session.Issuer {
	t.Helper()
	opts = append(opts, session.WithClock(c.now))
	iss, err := session.NewIssuer(secret, opts...)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	if _, err := session.NewIssuer(""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestIssue_RoundTrip(t *testing.T) {
	T := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	c := &clock{t: T}
	iss := newIssuer(t, c)

	tok, err := iss.Issue("65f0c0ffee0000000000abcd")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !tok.ExpiresAt.Equal(T.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, T.Add(time.Hour))
	}

	claims, err := iss.Validate(tok.Value)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.PrincipalID != "65f0c0ffee0000000000abcd" {
		t.Errorf("PrincipalID = %q", claims.PrincipalID)
	}
	if !claims.IssuedAt.Equal(T) {
		t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt, T)
	}
}

func TestIssue_EmptyPrincipal(t *testing.T) {
	iss := newIssuer(t, &clock{t: time.Now()})
	if _, err := iss.Issue(""); err == nil {
		t.Error("expected error for empty principal id")
	}
}

func TestValidate_LifetimeBoundary(t *testing.T) {
	T := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	c := &clock{t: T}
	iss := newIssuer(t, c)

	tok, err := iss.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c.t = T.Add(59 * time.Minute)
	if _, err := iss.Validate(tok.Value); err != nil {
		t.Fatalf("at T+59m: unexpected error: %v", err)
	}

	c.t = T.Add(61 * time.Minute)
	_, err = iss.Validate(tok.Value)
	if apperr.KindOf(err) != apperr.TokenExpired {
		t.Fatalf("at T+61m: kind = %s, want TokenExpired", apperr.KindOf(err))
	}
}

func TestValidate_CustomLifetime(t *testing.T) {
	T := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	c := &clock{t: T}
	iss := newIssuer(t, c, session.WithLifetime(10*time.Minute))

	if iss.Lifetime() != 10*time.Minute {
		t.Fatalf("Lifetime = %v", iss.Lifetime())
	}
	tok, _ := iss.Issue("user-1")
	c.t = T.Add(11 * time.Minute)
	if _, err := iss.Validate(tok.Value); apperr.KindOf(err) != apperr.TokenExpired {
		t.Errorf("kind = %s, want TokenExpired", apperr.KindOf(err))
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	c := &clock{t: time.Now()}
	iss := newIssuer(t, c)
	other, err := session.NewIssuer("another-secret-that-is-32-chars-long", session.WithClock(c.now))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	tok, _ := other.Issue("user-1")
	if _, err := iss.Validate(tok.Value); apperr.KindOf(err) != apperr.TokenInvalid {
		t.Errorf("kind = %s, want TokenInvalid", apperr.KindOf(err))
	}
}

func TestValidate_WrongIssuer(t *testing.T) {
	c := &clock{t: time.Now()}
	iss := newIssuer(t, c)
	other := newIssuer(t, c, session.WithIssuer("someone-else"))

	tok, _ := other.Issue("user-1")
	if _, err := iss.Validate(tok.Value); apperr.KindOf(err) != apperr.TokenInvalid {
		t.Errorf("kind = %s, want TokenInvalid", apperr.KindOf(err))
	}
}

func TestValidate_Malformed(t *testing.T) {
	iss := newIssuer(t, &clock{t: time.Now()})
	for _, raw := range []string{"", "garbage", "a.b.c", strings.Repeat("x", 200)} {
		_, err := iss.Validate(raw)
		if apperr.KindOf(err) != apperr.TokenInvalid {
			t.Errorf("Validate(%q): kind = %s, want TokenInvalid", raw, apperr.KindOf(err))
		}
	}
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	c := &clock{t: time.Now()}
	iss := newIssuer(t, c)

	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    session.DefaultIssuer,
		ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := iss.Validate(raw); apperr.KindOf(err) != apperr.TokenInvalid {
		t.Errorf("kind = %s, want TokenInvalid", apperr.KindOf(err))
	}
}

func TestValidate_MissingSubject(t *testing.T) {
	c := &clock{t: time.Now()}
	iss := newIssuer(t, c)

	claims := jwt.RegisteredClaims{
		Issuer:    session.DefaultIssuer,
		ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = iss.Validate(raw)
	if !errors.Is(err, &apperr.Error{Kind: apperr.TokenInvalid}) {
		t.Errorf("expected TokenInvalid, got %v", err)
	}
}
