package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/dalemusser/dashhub/internal/app/system/identity"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const clientID = "dashhub-test.apps.googleusercontent.com"

// provider is a fake identity provider publishing a JWKS document.
type provider struct {
	mu      sync.Mutex
	keys    map[string]*rsa.PrivateKey
	fetches atomic.Int32
	srv     *httptest.Server
}

func newProvider(t *testing.T, kids ...string) *provider {
	t.Helper()
	p := &provider{keys: make(map[string]*rsa.PrivateKey)}
	for _, kid := range kids {
		p.addKey(t, kid)
	}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.fetches.Add(1)
		p.mu.Lock()
		var set jose.JSONWebKeySet
		for kid, k := range p.keys {
			set.Keys = append(set.Keys, jose.JSONWebKey{Key: &k.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"})
		}
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *provider) addKey(t *testing.T, kid string) {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	p.mu.Lock()
	p.keys[kid] = k
	p.mu.Unlock()
}

func (p *provider) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	p.mu.Lock()
	k := p.keys[kid]
	p.mu.Unlock()
	if k == nil {
		// Sign with a key the provider does not publish.
		var err error
		k, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	raw, err := tok.SignedString(k)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func validClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            clientID,
		"sub":            "google-sub-123",
		"email":          "alice@example.com",
		"email_verified": true,
		"name":           "Alice Example",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func newVerifier(t *testing.T, p *provider, now time.Time) *identity.GoogleVerifier {
	t.Helper()
	v, err := identity.NewGoogleVerifier(identity.Config{
		ClientID: clientID,
		JWKSURL:  p.srv.URL,
		Timeout:  2 * time.Second,
		Now:      func() time.Time { return now },
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGoogleVerifier: %v", err)
	}
	return v
}

func TestNewGoogleVerifier_RequiresClientID(t *testing.T) {
	if _, err := identity.NewGoogleVerifier(identity.Config{}, nil); err == nil {
		t.Error("expected error without client id")
	}
}

func TestVerify_Valid(t *testing.T) {
	now := time.Now()
	p := newProvider(t, "k1")
	v := newVerifier(t, p, now)

	c, err := v.Verify(context.Background(), p.sign(t, "k1", validClaims(now)))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	want := identity.Claims{ExternalID: "google-sub-123", Email: "alice@example.com", DisplayName: "Alice Example"}
	if c != want {
		t.Errorf("claims = %+v, want %+v", c, want)
	}
}

func TestVerify_KeysCachedAcrossCalls(t *testing.T) {
	now := time.Now()
	p := newProvider(t, "k1")
	v := newVerifier(t, p, now)

	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), p.sign(t, "k1", validClaims(now))); err != nil {
			t.Fatalf("Verify #%d: %v", i, err)
		}
	}
	if got := p.fetches.Load(); got != 1 {
		t.Errorf("JWKS fetched %d times, want 1", got)
	}
}

func TestVerify_KeyRotation(t *testing.T) {
	now := time.Now()
	p := newProvider(t, "k1")
	v := newVerifier(t, p, now)

	if _, err := v.Verify(context.Background(), p.sign(t, "k1", validClaims(now))); err != nil {
		t.Fatalf("Verify k1: %v", err)
	}

	p.addKey(t, "k2")
	if _, err := v.Verify(context.Background(), p.sign(t, "k2", validClaims(now))); err != nil {
		t.Fatalf("Verify k2 after rotation: %v", err)
	}
	if got := p.fetches.Load(); got != 2 {
		t.Errorf("JWKS fetched %d times, want 2", got)
	}
}

func TestVerify_Rejections(t *testing.T) {
	now := time.Now()
	p := newProvider(t, "k1")
	v := newVerifier(t, p, now)

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		kid    string
	}{
		{"expired", func(c jwt.MapClaims) { c["exp"] = now.Add(-time.Minute).Unix() }, "k1"},
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "someone-else" }, "k1"},
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }, "k1"},
		{"missing subject", func(c jwt.MapClaims) { delete(c, "sub") }, "k1"},
		{"missing expiry", func(c jwt.MapClaims) { delete(c, "exp") }, "k1"},
		{"unknown key", func(c jwt.MapClaims) {}, "unpublished"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClaims(now)
			tt.mutate(c)
			_, err := v.Verify(context.Background(), p.sign(t, tt.kid, c))
			if apperr.KindOf(err) != apperr.InvalidAssertion {
				t.Errorf("kind = %s, want InvalidAssertion (err=%v)", apperr.KindOf(err), err)
			}
		})
	}
}

func TestVerify_EmptyAndGarbage(t *testing.T) {
	p := newProvider(t, "k1")
	v := newVerifier(t, p, time.Now())

	for _, raw := range []string{"", "  ", "not-a-jwt"} {
		_, err := v.Verify(context.Background(), raw)
		if apperr.KindOf(err) != apperr.InvalidAssertion {
			t.Errorf("Verify(%q): kind = %s, want InvalidAssertion", raw, apperr.KindOf(err))
		}
	}
}

func TestVerify_RejectsHMACSignedToken(t *testing.T) {
	now := time.Now()
	p := newProvider(t, "k1")
	v := newVerifier(t, p, now)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(now))
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(context.Background(), raw); apperr.KindOf(err) != apperr.InvalidAssertion {
		t.Errorf("kind = %s, want InvalidAssertion", apperr.KindOf(err))
	}
}

func TestVerify_ProviderTimeout(t *testing.T) {
	var hits atomic.Int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	now := time.Now()
	p := newProvider(t, "k1")
	v, err := identity.NewGoogleVerifier(identity.Config{
		ClientID: clientID,
		JWKSURL:  slow.URL,
		Timeout:  50 * time.Millisecond,
		Now:      func() time.Time { return now },
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGoogleVerifier: %v", err)
	}

	start := time.Now()
	_, err = v.Verify(context.Background(), p.sign(t, "k1", validClaims(now)))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Verify took %v; timeout not applied", elapsed)
	}
	if apperr.KindOf(err) != apperr.InternalError {
		t.Errorf("kind = %s, want InternalError", apperr.KindOf(err))
	}
	if !errors.Is(err, identity.ErrProviderTimeout) {
		t.Errorf("expected ErrProviderTimeout in chain, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("provider called %d times, want exactly 1 (no retry)", got)
	}
}

func TestVerify_ProviderErrorIsInternal(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"service unavailable", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}},
		{"malformed jwks", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not json"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			now := time.Now()
			p := newProvider(t, "k1")
			v, err := identity.NewGoogleVerifier(identity.Config{
				ClientID: clientID,
				JWKSURL:  srv.URL,
				Now:      func() time.Time { return now },
			}, zap.NewNop())
			if err != nil {
				t.Fatalf("NewGoogleVerifier: %v", err)
			}

			_, err = v.Verify(context.Background(), p.sign(t, "k1", validClaims(now)))
			if apperr.KindOf(err) != apperr.InternalError {
				t.Errorf("kind = %s, want InternalError (err=%v)", apperr.KindOf(err), err)
			}
			if errors.Is(err, identity.ErrProviderTimeout) {
				t.Errorf("unexpected ErrProviderTimeout in chain: %v", err)
			}
			if got := apperr.BodyOf(err).Message; got != "Internal server error" {
				t.Errorf("client message = %q, want generic", got)
			}
		})
	}
}

func TestVerify_ProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	now := time.Now()
	p := newProvider(t, "k1")
	v, err := identity.NewGoogleVerifier(identity.Config{
		ClientID: clientID,
		JWKSURL:  url,
		Now:      func() time.Time { return now },
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGoogleVerifier: %v", err)
	}

	_, err = v.Verify(context.Background(), p.sign(t, "k1", validClaims(now)))
	if apperr.KindOf(err) != apperr.InternalError {
		t.Errorf("kind = %s, want InternalError (err=%v)", apperr.KindOf(err), err)
	}
}
