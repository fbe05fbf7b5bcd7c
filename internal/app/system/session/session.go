// Package session mints and validates the signed bearer credential handed
// to a client after a successful login.
//
// Credentials are stateless HS256 JWTs binding the principal ID and a fixed
// expiry. There is no revocation list: a credential stays valid until it
// expires even if the account is deactivated in the meantime. The request
// guard re-checks the account on every request to cover that gap.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultLifetime is how long an issued credential stays valid.
const DefaultLifetime = time.Hour

// DefaultIssuer is the "iss" claim written to every credential.
const DefaultIssuer = "dashhub"

// Token is a freshly issued credential.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims are the validated contents of a credential.
type Claims struct {
	PrincipalID string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Issuer signs and validates session credentials.
type Issuer struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.lifetime = d
		}
	}
}

// WithIssuer overrides DefaultIssuer.
func WithIssuer(iss string) Option {
	return func(i *Issuer) {
		if iss != "" {
			i.issuer = iss
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer creates an Issuer signing with secret.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	i := &Issuer{
		secret:   []byte(secret),
		issuer:   DefaultIssuer,
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Lifetime returns the configured credential lifetime.
func (i *Issuer) Lifetime() time.Duration { return i.lifetime }

// Issue mints a credential for principalID.
func (i *Issuer) Issue(principalID string) (Token, error) {
	if principalID == "" {
		return Token{}, errors.New("session: empty principal id")
	}
	// JWT timestamps have second precision.
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(i.lifetime)

	claims := jwt.RegisteredClaims{
		Subject:   principalID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign session token: %w", err)
	}
	return Token{Value: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

// Validate checks a credential's signature and expiry.
//
// It returns an apperr TokenExpired error once the lifetime has elapsed and
// TokenInvalid for anything else that fails to verify.
func (i *Issuer) Validate(raw string) (Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &rc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperr.Wrap(apperr.TokenExpired, "session token expired", err)
		}
		return Claims{}, apperr.Wrap(apperr.TokenInvalid, "session token invalid", err)
	}
	if rc.Subject == "" {
		return Claims{}, apperr.New(apperr.TokenInvalid, "session token has no subject")
	}

	c := Claims{PrincipalID: rc.Subject}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}
