package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/truecam/internal/common"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenCache(auth Authenticator, kv *memKV, now time.Time) *TokenCache {
	c := NewTokenCache(auth, kv, logging.Nop())
	c.now = func() time.Time { return now }
	return c
}

func TestToken_AuthenticatesOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	auth := &fakeAuth{tokens: []string{"abc"}, expiresIn: 3600}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestTokenCache(auth, kv, now)

	tok, err := c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	tok, err = c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	assert.EqualValues(t, 1, auth.calls.Load())

	var st storedToken
	require.NoError(t, json.Unmarshal(kv.data[common.TokenStorageKey], &st))
	assert.Equal(t, "abc", st.AccessToken)
	require.NotNil(t, st.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour-expirySkew), *st.ExpiresAt)
}

func TestToken_ReusedAcrossRestart(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	now := time.Now()

	first := newTestTokenCache(&fakeAuth{tokens: []string{"persisted"}, expiresIn: 3600}, kv, now)
	_, err := first.Token(ctx)
	require.NoError(t, err)

	auth := &fakeAuth{tokens: []string{"fresh"}}
	second := newTestTokenCache(auth, kv, now)
	tok, err := second.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", tok)
	assert.EqualValues(t, 0, auth.calls.Load())
}

func TestToken_LegacyBareStringAccepted(t *testing.T) {
	kv := newMemKV()
	kv.data[common.TokenStorageKey] = []byte("legacy-token")
	auth := &fakeAuth{}

	tok, err := newTestTokenCache(auth, kv, time.Now()).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", tok)
	assert.EqualValues(t, 0, auth.calls.Load())
}

func TestToken_ExpiredIsReplaced(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	past := time.Now().Add(-time.Minute)
	b, _ := json.Marshal(storedToken{AccessToken: "old", ExpiresAt: &past})
	kv.data[common.TokenStorageKey] = b

	auth := &fakeAuth{tokens: []string{"new"}, expiresIn: 600}
	tok, err := newTestTokenCache(auth, kv, time.Now()).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", tok)
	assert.EqualValues(t, 1, auth.calls.Load())
}

func TestToken_ExpiryFromJWTWhenNoExpiresIn(t *testing.T) {
	exp := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	kv := newMemKV()
	c := newTestTokenCache(&fakeAuth{tokens: []string{signed}}, kv, time.Now())
	_, err = c.Token(context.Background())
	require.NoError(t, err)

	var st storedToken
	require.NoError(t, json.Unmarshal(kv.data[common.TokenStorageKey], &st))
	require.NotNil(t, st.ExpiresAt)
	assert.True(t, st.ExpiresAt.Equal(exp.Add(-expirySkew)))
}

func TestToken_OpaqueWithoutExpiryTrustedUntilRejected(t *testing.T) {
	kv := newMemKV()
	c := newTestTokenCache(&fakeAuth{tokens: []string{"opaque"}}, kv, time.Now())
	_, err := c.Token(context.Background())
	require.NoError(t, err)

	var st storedToken
	require.NoError(t, json.Unmarshal(kv.data[common.TokenStorageKey], &st))
	assert.Nil(t, st.ExpiresAt)
}

func TestToken_ConcurrentMissesShareOneAuthentication(t *testing.T) {
	auth := &fakeAuth{tokens: []string{"shared"}, delay: 50 * time.Millisecond}
	c := newTestTokenCache(auth, newMemKV(), time.Now())

	const n = 8
	var wg sync.WaitGroup
	got := make([]string, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tok, err := c.Token(context.Background())
			assert.NoError(t, err)
			got[i] = tok
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, auth.calls.Load())
	for _, tok := range got {
		assert.Equal(t, "shared", tok)
	}
}

func TestToken_CancelledCallerDoesNotFailOtherWaiters(t *testing.T) {
	auth := &fakeAuth{tokens: []string{"shared"}, delay: 200 * time.Millisecond}
	c := newTestTokenCache(auth, newMemKV(), time.Now())

	firstCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Token(firstCtx)
		first <- err
	}()
	require.Eventually(t, func() bool { return auth.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan string, 1)
	go func() {
		tok, err := c.Token(context.Background())
		assert.NoError(t, err)
		second <- tok
	}()
	cancel()

	require.ErrorIs(t, <-first, context.Canceled)
	assert.Equal(t, "shared", <-second)
	assert.EqualValues(t, 1, auth.calls.Load())
}

func TestToken_AuthFailureWrapsErrAuth(t *testing.T) {
	c := newTestTokenCache(&fakeAuth{err: errBoom}, newMemKV(), time.Now())
	_, err := c.Token(context.Background())
	require.ErrorIs(t, err, common.ErrAuth)
	require.ErrorIs(t, err, errBoom)
}

func TestToken_PersistFailureStillReturnsToken(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errBoom
	tok, err := newTestTokenCache(&fakeAuth{tokens: []string{"x"}}, kv, time.Now()).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", tok)
}

func TestInvalidate_OnlyDropsRejectedToken(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	auth := &fakeAuth{tokens: []string{"one", "two"}}
	c := newTestTokenCache(auth, kv, time.Now())

	tok, err := c.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "one", tok)

	c.Invalidate(ctx, "someone-else")
	tok, err = c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", tok)

	c.Invalidate(ctx, "one")
	_, ok := kv.data[common.TokenStorageKey]
	assert.False(t, ok)

	tok, err = c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", tok)
	assert.EqualValues(t, 2, auth.calls.Load())
}
