// Package identity turns an identity assertion issued by an external
// provider into local claims.
//
// The only implementation verifies Google ID tokens: RS256 JWTs signed by a
// key published in the provider's JWKS document. Verification has no effect
// on the user directory.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Google defaults.
const (
	GoogleJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	DefaultTimeout    = 5 * time.Second
	defaultKeyCache   = 32
	defaultRefreshTTL = time.Hour
)

// GoogleIssuers are the accepted "iss" values on Google ID tokens.
var GoogleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// ErrProviderTimeout is the cause attached when the provider's key endpoint
// does not answer within the configured timeout.
var ErrProviderTimeout = errors.New("identity provider timed out")

// Claims are the local claims extracted from a verified assertion.
type Claims struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// Verifier validates an assertion and extracts its claims.
type Verifier interface {
	Verify(ctx context.Context, assertion string) (Claims, error)
}

// Config configures a GoogleVerifier.
type Config struct {
	ClientID string        // required audience
	JWKSURL  string        // defaults to GoogleJWKSURL
	Issuers  []string      // defaults to GoogleIssuers
	Timeout  time.Duration // bound on each key fetch; defaults to DefaultTimeout
	// RefreshTTL is how long fetched keys are trusted before the set is
	// reloaded. Defaults to one hour.
	RefreshTTL time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// GoogleVerifier verifies Google ID tokens.
type GoogleVerifier struct {
	clientID string
	issuers  []string
	keys     *keySet
	now      func() time.Time
	log      *zap.Logger
}

// NewGoogleVerifier creates a verifier for tokens issued to cfg.ClientID.
func NewGoogleVerifier(cfg Config, logger *zap.Logger) (*GoogleVerifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("identity: client id is required")
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = GoogleJWKSURL
	}
	if len(cfg.Issuers) == 0 {
		cfg.Issuers = GoogleIssuers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ks, err := newKeySet(cfg.JWKSURL, cfg.HTTPClient, cfg.Timeout, cfg.RefreshTTL, cfg.Now)
	if err != nil {
		return nil, err
	}
	return &GoogleVerifier{
		clientID: cfg.ClientID,
		issuers:  cfg.Issuers,
		keys:     ks,
		now:      cfg.Now,
		log:      logger,
	}, nil
}

// idTokenClaims are the Google ID token fields we read.
type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// Verify validates the assertion's signature, audience, issuer and expiry.
// It never retries: assertions may be single-use.
//
// A rejected assertion is InvalidAssertion. A provider that cannot be reached
// or answers with an error is InternalError, with ErrProviderTimeout in the
// chain when the key fetch timed out.
func (v *GoogleVerifier) Verify(ctx context.Context, assertion string) (Claims, error) {
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return Claims{}, apperr.New(apperr.InvalidAssertion, "Invalid Google token")
	}

	var keyErr error
	var c idTokenClaims
	_, err := jwt.ParseWithClaims(assertion, &c, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := v.keys.get(ctx, kid)
		if err != nil {
			keyErr = err
			return nil, err
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if keyErr != nil && !errors.Is(keyErr, errUnknownKey) {
			v.log.Error("identity provider key fetch failed",
				zap.Bool("timeout", errors.Is(keyErr, ErrProviderTimeout)),
				zap.Error(keyErr))
			return Claims{}, apperr.Wrap(apperr.InternalError, "Identity provider unavailable", keyErr)
		}
		return Claims{}, apperr.Wrap(apperr.InvalidAssertion, "Invalid Google token", err)
	}

	if !v.issuerAllowed(c.Issuer) {
		return Claims{}, apperr.Wrap(apperr.InvalidAssertion, "Invalid Google token",
			fmt.Errorf("unexpected issuer %q", c.Issuer))
	}
	if c.Subject == "" {
		return Claims{}, apperr.New(apperr.InvalidAssertion, "Invalid Google token")
	}

	return Claims{
		ExternalID:  c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
	}, nil
}

func (v *GoogleVerifier) issuerAllowed(iss string) bool {
	for _, want := range v.issuers {
		if iss == want {
			return true
		}
	}
	return false
}
