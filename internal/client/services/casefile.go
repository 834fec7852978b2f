package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/qtsp"
	"github.com/dmitrijs2005/truecam/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/truecam/internal/common"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCaseNamePrefix = "TrueCam"
	caseDescription       = "TrueCam Evidence Session"
)

type CaseCreator interface {
	CreateCase(ctx context.Context, token string, req qtsp.CreateCaseRequest) (string, error)
}

// CaseManager resolves the long-lived case resource that scopes every
// sealing request of this install. The identifier is persisted in the local
// key-value store and only dropped through Invalidate.
type CaseManager struct {
	provider   CaseCreator
	tokens     TokenSource
	store      metadata.Repository
	logger     logging.Logger
	namePrefix string
	now        func() time.Time
	newID      func() string

	mu     sync.RWMutex
	cached string
	loaded bool

	group singleflight.Group
}

func NewCaseManager(provider CaseCreator, tokens TokenSource, store metadata.Repository, logger logging.Logger, namePrefix string) *CaseManager {
	if namePrefix == "" {
		namePrefix = DefaultCaseNamePrefix
	}
	return &CaseManager{
		provider:   provider,
		tokens:     tokens,
		store:      store,
		logger:     logger,
		namePrefix: namePrefix,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Resolve returns the cached case identifier or creates a case. Errors wrap
// common.ErrResource; a token failure is reported the same way.
func (m *CaseManager) Resolve(ctx context.Context) (string, error) {
	if id := m.current(ctx); id != "" {
		return id, nil
	}

	v, err := sharedCall(ctx, &m.group, "case", func(ctx context.Context) (any, error) {
		if id := m.current(ctx); id != "" {
			return id, nil
		}
		return m.create(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate forgets caseID if it is still the cached one, so the next
// Resolve creates a new case.
func (m *CaseManager) Invalidate(ctx context.Context, caseID string) {
	m.mu.Lock()
	if m.cached != caseID {
		m.mu.Unlock()
		return
	}
	m.cached = ""
	m.loaded = true
	m.mu.Unlock()

	if err := m.store.Delete(ctx, common.CaseStorageKey); err != nil {
		m.logger.Warn(ctx, "failed to delete persisted case id", "case_id", caseID, "error", err)
	}
	m.logger.Warn(ctx, "case id invalidated", "case_id", caseID)
}

func (m *CaseManager) create(ctx context.Context) (string, error) {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: create case: %w", common.ErrResource, err)
	}

	req := qtsp.CreateCaseRequest{
		ID:          m.newID(),
		Name:        fmt.Sprintf("%s-%d", m.namePrefix, m.now().UnixMilli()),
		Description: caseDescription,
	}

	var caseID string
	_, err = withTokenRetry(ctx, m.tokens, token, func(token string) error {
		var cerr error
		caseID, cerr = m.provider.CreateCase(ctx, token, req)
		return cerr
	})
	if err != nil {
		return "", fmt.Errorf("%w: create case: %w", common.ErrResource, err)
	}

	m.mu.Lock()
	m.cached = caseID
	m.loaded = true
	m.mu.Unlock()

	if err := m.store.Set(ctx, common.CaseStorageKey, []byte(caseID)); err != nil {
		m.logger.Warn(ctx, "failed to persist case id", "case_id", caseID, "error", err)
	}

	m.logger.Info(ctx, "case created", "case_id", caseID, "name", req.Name)
	return caseID, nil
}

func (m *CaseManager) current(ctx context.Context) string {
	m.mu.RLock()
	if m.loaded {
		id := m.cached
		m.mu.RUnlock()
		return id
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return m.cached
	}

	raw, err := m.store.Get(ctx, common.CaseStorageKey)
	if err != nil {
		m.logger.Warn(ctx, "failed to load persisted case id", "error", err)
		return ""
	}
	m.cached = strings.TrimSpace(string(raw))
	m.loaded = true
	return m.cached
}
