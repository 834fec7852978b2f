package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/localdb"
	"github.com/dmitrijs2005/truecam/internal/client/qtsp"
	"github.com/dmitrijs2005/truecam/internal/remote/ledger"
	"github.com/stretchr/testify/require"
)

func openRepos(t *testing.T) *localdb.Repositories {
	t.Helper()
	repos, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "truecam.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

// memKV is an in-memory metadata.Repository with injectable failures.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	// failSetKey limits setErr to one key when non-empty.
	failSetKey string
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil && (m.failSetKey == "" || m.failSetKey == key) {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) List(ctx context.Context) (map[string][]byte, error) {
	return m.ListPrefix(ctx, "")
}

func (m *memKV) ListPrefix(_ context.Context, prefix string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]byte{}
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memKV) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}
	return nil
}

type fakeAuth struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	// tokens are handed out in order; the last one repeats.
	tokens    []string
	expiresIn int64
}

func (f *fakeAuth) Authenticate(ctx context.Context) (*qtsp.TokenResponse, error) {
	n := int(f.calls.Add(1))
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	tok := "tok-1"
	if len(f.tokens) > 0 {
		tok = f.tokens[min(n, len(f.tokens))-1]
	}
	return &qtsp.TokenResponse{AccessToken: tok, TokenType: "Bearer", ExpiresIn: f.expiresIn}, nil
}

// fakeTokens is a TokenSource that rotates tokens on Invalidate.
type fakeTokens struct {
	mu          sync.Mutex
	current     string
	gen         int
	err         error
	invalidated []string
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.current == "" {
		f.gen++
		f.current = fmt.Sprintf("tok-%d", f.gen)
	}
	return f.current, nil
}

func (f *fakeTokens) Invalidate(_ context.Context, rejected string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, rejected)
	if f.current == rejected {
		f.current = ""
	}
}

type fakeCases struct {
	mu          sync.Mutex
	ids         []string
	n           int
	err         error
	invalidated []string
}

func (f *fakeCases) Resolve(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.ids[min(f.n, len(f.ids)-1)], nil
}

func (f *fakeCases) Invalidate(_ context.Context, caseID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, caseID)
	f.n++
}

type providerCall struct {
	Op     string
	Token  string
	CaseID string
	ID     string
}

// fakeProvider records every call. errs holds, per operation, the errors
// returned by successive calls before it starts succeeding.
type fakeProvider struct {
	mu    sync.Mutex
	calls []providerCall
	errs  map[string][]error

	uploaded []byte
	uploadCT string
	panicOn  string
}

func (f *fakeProvider) record(op, token, caseID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{Op: op, Token: token, CaseID: caseID, ID: id})
	if f.panicOn == op {
		panic("boom")
	}
	if q := f.errs[op]; len(q) > 0 {
		f.errs[op] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeProvider) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Op)
	}
	return out
}

func (f *fakeProvider) callsOf(op string) []providerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []providerCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeProvider) CreateCase(_ context.Context, token string, req qtsp.CreateCaseRequest) (string, error) {
	if err := f.record("case", token, "", req.ID); err != nil {
		return "", err
	}
	return req.ID, nil
}

func (f *fakeProvider) CreateGroup(_ context.Context, token, caseID string, req qtsp.CreateGroupRequest) (string, error) {
	if err := f.record("group", token, caseID, req.ID); err != nil {
		return "", err
	}
	return req.ID, nil
}

func (f *fakeProvider) RegisterEvidence(_ context.Context, token, caseID, _ string, req qtsp.RegisterEvidenceRequest) (string, error) {
	if err := f.record("register", token, caseID, req.ID); err != nil {
		return "", err
	}
	return req.ID, nil
}

func (f *fakeProvider) GetUploadURL(_ context.Context, token, caseID, _, evidenceID string) (string, error) {
	if err := f.record("upload_url", token, caseID, evidenceID); err != nil {
		return "", err
	}
	return "https://upload.example/" + evidenceID, nil
}

func (f *fakeProvider) Upload(_ context.Context, uploadURL, contentType string, payload []byte) error {
	if err := f.record("upload", "", "", uploadURL); err != nil {
		return err
	}
	f.mu.Lock()
	f.uploaded = payload
	f.uploadCT = contentType
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) CloseGroup(_ context.Context, token, caseID, groupID string) error {
	return f.record("close", token, caseID, groupID)
}

func providerErr(op string, code int) error {
	return qtsp.NewProviderError(op, code, "provider said no")
}

type fakeObjects struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	signErr   error
	signs     int
	// hang makes Upload wait for its context to end.
	hang bool
}

func newFakeObjects() *fakeObjects { return &fakeObjects{objects: map[string][]byte{}} }

func (f *fakeObjects) Upload(ctx context.Context, key, _ string, data []byte) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signs++
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("https://s3.example/%s?sig=%d", key, f.signs), nil
}

type fakeLedger struct {
	mu        sync.Mutex
	rows      []ledger.EvidenceRow
	insertErr error
	match     *ledger.Match
	findErr   error
	hang      bool
}

func (f *fakeLedger) InsertEvidence(ctx context.Context, row ledger.EvidenceRow) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeLedger) FindByHash(context.Context, string) (*ledger.Match, error) {
	return f.match, f.findErr
}

var errBoom = errors.New("boom")
