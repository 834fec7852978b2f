package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/qtsp"
	"github.com/dmitrijs2005/truecam/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/truecam/internal/common"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// expirySkew is subtracted from the provider-declared lifetime so a token is
// renewed slightly before the provider starts rejecting it.
const expirySkew = 30 * time.Second

// sharedCallTimeout bounds a call shared by concurrent callers, which runs
// detached from the context of whichever caller started it.
const sharedCallTimeout = time.Minute

// Authenticator performs the client-credentials exchange.
type Authenticator interface {
	Authenticate(ctx context.Context) (*qtsp.TokenResponse, error)
}

type storedToken struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (t *storedToken) usable(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt == nil || now.Before(*t.ExpiresAt)
}

// TokenCache holds the single bearer token of this install. The token is
// persisted in the local key-value store and survives restarts. Concurrent
// callers that miss share one authentication call.
type TokenCache struct {
	auth   Authenticator
	store  metadata.Repository
	logger logging.Logger
	now    func() time.Time

	mu     sync.RWMutex
	cached *storedToken
	loaded bool

	group singleflight.Group
}

func NewTokenCache(auth Authenticator, store metadata.Repository, logger logging.Logger) *TokenCache {
	return &TokenCache{auth: auth, store: store, logger: logger, now: time.Now}
}

// Token returns the cached token while it is usable, otherwise authenticates.
// Errors wrap common.ErrAuth.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if t := c.current(ctx); t.usable(c.now()) {
		return t.AccessToken, nil
	}

	v, err := sharedCall(ctx, &c.group, "token", func(ctx context.Context) (any, error) {
		if t := c.current(ctx); t.usable(c.now()) {
			return t.AccessToken, nil
		}
		return c.authenticate(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// sharedCall runs fn once for all concurrent callers of key. fn gets a
// context that keeps the caller's values but not its cancellation, so one
// caller giving up does not fail the others. Each caller still stops waiting
// when its own ctx ends.
func sharedCall(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := g.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return fn(sctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached token if it is still the rejected one. A token
// refreshed meanwhile by another capture is kept.
func (c *TokenCache) Invalidate(ctx context.Context, rejected string) {
	c.mu.Lock()
	if c.cached == nil || c.cached.AccessToken != rejected {
		c.mu.Unlock()
		return
	}
	c.cached = nil
	c.loaded = true
	c.mu.Unlock()

	if err := c.store.Delete(ctx, common.TokenStorageKey); err != nil {
		c.logger.Warn(ctx, "failed to delete persisted token", "error", err)
	}
}

func (c *TokenCache) authenticate(ctx context.Context) (string, error) {
	resp, err := c.auth.Authenticate(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrAuth, err)
	}

	t := &storedToken{AccessToken: resp.AccessToken, ExpiresAt: c.expiryFor(resp)}

	c.mu.Lock()
	c.cached = t
	c.loaded = true
	c.mu.Unlock()

	if b, err := json.Marshal(t); err == nil {
		if err := c.store.Set(ctx, common.TokenStorageKey, b); err != nil {
			c.logger.Warn(ctx, "failed to persist token", "error", err)
		}
	}

	c.logger.Debug(ctx, "access token obtained", "expires_at", t.ExpiresAt)
	return t.AccessToken, nil
}

// expiryFor prefers expires_in, then the JWT exp claim. A nil result means
// the token is trusted until the provider rejects it.
func (c *TokenCache) expiryFor(resp *qtsp.TokenResponse) *time.Time {
	now := c.now()

	if resp.ExpiresIn > 0 {
		lifetime := time.Duration(resp.ExpiresIn) * time.Second
		if lifetime > 2*expirySkew {
			lifetime -= expirySkew
		}
		at := now.Add(lifetime)
		return &at
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, claims); err == nil && claims.ExpiresAt != nil {
		at := claims.ExpiresAt.Add(-expirySkew)
		return &at
	}
	return nil
}

func (c *TokenCache) current(ctx context.Context) *storedToken {
	c.mu.RLock()
	if c.loaded {
		t := c.cached
		c.mu.RUnlock()
		return t
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.cached
	}

	t, err := c.load(ctx)
	if err != nil {
		c.logger.Warn(ctx, "failed to load persisted token", "error", err)
		return nil
	}
	c.cached = t
	c.loaded = true
	return t
}

func (c *TokenCache) load(ctx context.Context) (*storedToken, error) {
	raw, err := c.store.Get(ctx, common.TokenStorageKey)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var t storedToken
	if err := json.Unmarshal(raw, &t); err != nil {
		// Older installs stored the bare token string.
		s := strings.TrimSpace(string(raw))
		if s == "" || strings.ContainsAny(s, "{}\" ") {
			return nil, errors.New("unreadable persisted token")
		}
		return &storedToken{AccessToken: s}, nil
	}
	return &t, nil
}
