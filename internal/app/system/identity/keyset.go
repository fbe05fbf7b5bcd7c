package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// errUnknownKey is returned when the provider does not publish the key ID
// an assertion was signed with, even after a refresh.
var errUnknownKey = errors.New("signing key not published by provider")

// keySet caches the provider's public keys by key ID.
//
// A miss, or a cache older than ttl, triggers one fetch of the JWKS document.
// Concurrent misses share a single fetch.
type keySet struct {
	url     string
	client  *http.Client
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	cache *lru.Cache[string, any]
	group singleflight.Group

	mu        sync.Mutex
	fetchedAt time.Time
}

func newKeySet(url string, client *http.Client, timeout, ttl time.Duration, now func() time.Time) (*keySet, error) {
	cache, err := lru.New[string, any](defaultKeyCache)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &keySet{
		url:     url,
		client:  client,
		timeout: timeout,
		ttl:     ttl,
		now:     now,
		cache:   cache,
	}, nil
}

func (k *keySet) stale() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.fetchedAt.IsZero() || k.now().Sub(k.fetchedAt) > k.ttl
}

// get returns the public key for kid, refreshing the set once if needed.
func (k *keySet) get(ctx context.Context, kid string) (any, error) {
	if !k.stale() {
		if key, ok := k.cache.Get(kid); ok {
			return key, nil
		}
	}

	if _, err, _ := k.group.Do("refresh", func() (any, error) {
		return nil, k.refresh(ctx)
	}); err != nil {
		return nil, err
	}

	if key, ok := k.cache.Get(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", errUnknownKey, kid)
}

// refresh fetches the JWKS document and replaces the cached keys.
func (k *keySet) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		}
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status code: %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&set); err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		}
		return fmt.Errorf("decode jwks: %w", err)
	}

	k.cache.Purge()
	for _, jwk := range set.Keys {
		if jwk.KeyID == "" || !jwk.Valid() || !jwk.IsPublic() {
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		k.cache.Add(jwk.KeyID, jwk.Key)
	}

	k.mu.Lock()
	k.fetchedAt = k.now()
	k.mu.Unlock()
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
