package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/qtsp"
	"github.com/dmitrijs2005/truecam/internal/common"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowProvider delays case creation so concurrent resolvers overlap.
type slowProvider struct {
	*fakeProvider
	delay time.Duration
}

func (s *slowProvider) CreateCase(ctx context.Context, token string, req qtsp.CreateCaseRequest) (string, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return s.fakeProvider.CreateCase(ctx, token, req)
}

type recordingCaseProvider struct {
	last qtsp.CreateCaseRequest
}

func (r *recordingCaseProvider) CreateCase(_ context.Context, _ string, req qtsp.CreateCaseRequest) (string, error) {
	r.last = req
	return req.ID, nil
}

func TestResolve_CreatesOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	prov := &fakeProvider{}
	m := NewCaseManager(prov, &fakeTokens{}, kv, logging.Nop(), "")
	m.newID = func() string { return "case-1" }
	m.now = func() time.Time { return time.UnixMilli(1700000000000) }

	id, err := m.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "case-1", id)

	id, err = m.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "case-1", id)

	assert.Len(t, prov.callsOf("case"), 1)
	assert.Equal(t, []byte("case-1"), kv.data[common.CaseStorageKey])
}

func TestResolve_UsesPersistedID(t *testing.T) {
	kv := newMemKV()
	kv.data[common.CaseStorageKey] = []byte("existing")
	prov := &fakeProvider{}

	id, err := NewCaseManager(prov, &fakeTokens{}, kv, logging.Nop(), "").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "existing", id)
	assert.Empty(t, prov.calls)
}

func TestResolve_ConcurrentMissesCreateOneCase(t *testing.T) {
	prov := &slowProvider{fakeProvider: &fakeProvider{}, delay: 50 * time.Millisecond}
	m := NewCaseManager(prov, &fakeTokens{}, newMemKV(), logging.Nop(), "")

	var wg sync.WaitGroup
	ids := make([]string, 6)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := m.Resolve(context.Background())
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assert.Len(t, prov.callsOf("case"), 1)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestResolve_CancelledCallerDoesNotAbortSharedCreate(t *testing.T) {
	prov := &slowProvider{fakeProvider: &fakeProvider{}, delay: 100 * time.Millisecond}
	kv := newMemKV()
	m := NewCaseManager(prov, &fakeTokens{}, kv, logging.Nop(), "")
	m.newID = func() string { return "case-1" }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Resolve(ctx)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	id, err := m.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "case-1", id)
	assert.Len(t, prov.callsOf("case"), 1)
	assert.Equal(t, []byte("case-1"), kv.data[common.CaseStorageKey])
}

func TestResolve_TokenFailureIsResourceError(t *testing.T) {
	m := NewCaseManager(&fakeProvider{}, &fakeTokens{err: common.ErrAuth}, newMemKV(), logging.Nop(), "")
	_, err := m.Resolve(context.Background())
	require.ErrorIs(t, err, common.ErrResource)
	require.ErrorIs(t, err, common.ErrAuth)
}

func TestResolve_RetriesOnceOnUnauthorizedWithSameID(t *testing.T) {
	prov := &fakeProvider{errs: map[string][]error{"case": {providerErr("create case", 401)}}}
	tokens := &fakeTokens{}
	m := NewCaseManager(prov, tokens, newMemKV(), logging.Nop(), "")

	id, err := m.Resolve(context.Background())
	require.NoError(t, err)

	calls := prov.callsOf("case")
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].ID, calls[1].ID)
	assert.Equal(t, id, calls[1].ID)
	assert.Equal(t, "tok-1", calls[0].Token)
	assert.Equal(t, "tok-2", calls[1].Token)
	assert.Equal(t, []string{"tok-1"}, tokens.invalidated)
}

func TestResolve_NameCarriesPrefix(t *testing.T) {
	prov := &recordingCaseProvider{}
	m := NewCaseManager(prov, &fakeTokens{}, newMemKV(), logging.Nop(), "Field")
	m.now = func() time.Time { return time.UnixMilli(42) }

	_, err := m.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Field-42", prov.last.Name)
	assert.Equal(t, caseDescription, prov.last.Description)
	assert.True(t, strings.Count(prov.last.ID, "-") == 4, "case id must be a uuid")
}

func TestInvalidate_ForgetsMatchingCaseOnly(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	prov := &fakeProvider{}
	m := NewCaseManager(prov, &fakeTokens{}, kv, logging.Nop(), "")
	ids := []string{"c1", "c2"}
	m.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	id, err := m.Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, "c1", id)

	m.Invalidate(ctx, "other")
	id, _ = m.Resolve(ctx)
	assert.Equal(t, "c1", id)

	m.Invalidate(ctx, "c1")
	id, err = m.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c2", id)
	assert.Equal(t, []byte("c2"), kv.data[common.CaseStorageKey])
}
