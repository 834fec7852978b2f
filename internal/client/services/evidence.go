package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/truecam/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/truecam/internal/common"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/dmitrijs2005/truecam/internal/remote/ledger"
	"github.com/google/uuid"
)

// LocalBlobRefPrefix marks a LocalBlobRef as a key of the local blob store.
const LocalBlobRefPrefix = "blob:"

// ObjectStore is the remote blob store.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Transactor runs fn with local repositories bound to a single transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, kv metadata.Repository, blobRepo blobs.Repository) error) error
}

// EvidenceStore persists evidence records and their payloads. Local writes
// always happen; remote replication is attempted when an actor is known and
// only ever lowers the synced flag.
type EvidenceStore struct {
	kv      metadata.Repository
	blobs   blobs.Repository
	objects ObjectStore
	ledger  ledger.Repository
	tx      Transactor
	logger  logging.Logger
	now     func() time.Time
	newID   func() string

	// remoteTimeout bounds each object store and ledger call; zero means none.
	remoteTimeout time.Duration

	// mu serializes read-modify-write of the history list and guards pending.
	mu sync.Mutex
	// pending maps ids of saves in flight to their hash.
	pending map[string]string
}

// NewEvidenceStore wires the store. objects and ledger may be nil, in which
// case every record stays local (synced=false).
func NewEvidenceStore(kv metadata.Repository, blobRepo blobs.Repository, objects ObjectStore, ledgerRepo ledger.Repository, logger logging.Logger) *EvidenceStore {
	return &EvidenceStore{
		kv:      kv,
		blobs:   blobRepo,
		objects: objects,
		ledger:  ledgerRepo,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		pending: make(map[string]string),
	}
}

// WithRemoteTimeout bounds every object store upload and ledger insert by d.
func (s *EvidenceStore) WithRemoteTimeout(d time.Duration) *EvidenceStore {
	s.remoteTimeout = d
	return s
}

func (s *EvidenceStore) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.remoteTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.remoteTimeout)
}

// WithTransactor makes Clear atomic across the KV and blob stores.
func (s *EvidenceStore) WithTransactor(tx Transactor) *EvidenceStore {
	s.tx = tx
	return s
}

// Save persists rec and, when possible, replicates it. rec is updated in place
// with LocalBlobRef, RemoteStoragePath, Synced and the sync audit. The only
// error returned is a failure to write the local history (common.ErrStorage).
//
// Saving an id that is already stored with the same hash replaces that entry.
// An id already held by a different hash is never overwritten: rec gets a
// fresh id before anything is written.
func (s *EvidenceStore) Save(ctx context.Context, rec *models.EvidenceRecord, blob []byte, actorID string) error {
	release := s.reserve(ctx, rec)
	defer release()

	log := s.logger.With("evidence_id", rec.EvidenceID)
	if rec.Metadata.Version == 0 {
		rec.Metadata.Version = models.AuditVersion
	}

	if blob != nil {
		err := s.blobs.Put(ctx, &models.Blob{
			Key:         rec.EvidenceID,
			Data:        blob,
			ContentType: rec.ContentType,
			CreatedAt:   rec.CreatedAt,
		})
		if err != nil {
			rec.LocalBlobRef = ""
			rec.Metadata.Sync.LocalBlobError = err.Error()
			log.Warn(ctx, "local blob write failed", "error", err)
		} else {
			rec.LocalBlobRef = LocalBlobRefPrefix + rec.EvidenceID
		}
	}

	rec.Synced = false
	if blob != nil && actorID != "" {
		rec.Synced = s.replicate(ctx, log, rec, blob, actorID)
	} else {
		syncOutcomesTotal.WithLabelValues("skipped").Inc()
	}

	if err := s.prepend(ctx, *rec); err != nil {
		log.Error(ctx, "evidence not saved", "error", err)
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}

// replicate uploads the blob then inserts the metadata row. It reports true
// only when both writes succeeded.
func (s *EvidenceStore) replicate(ctx context.Context, log logging.Logger, rec *models.EvidenceRecord, blob []byte, actorID string) bool {
	at := s.now().UTC()
	rec.Metadata.Sync.ActorID = actorID
	rec.Metadata.Sync.AttemptedAt = &at

	if s.objects == nil {
		rec.Metadata.Sync.Error = "remote blob: " + common.ErrNotConfigured.Error()
		syncOutcomesTotal.WithLabelValues("skipped").Inc()
		return false
	}

	path := RemotePath(actorID, rec.EvidenceID, rec.ContentType)
	uctx, cancel := s.remoteCtx(ctx)
	err := s.objects.Upload(uctx, path, rec.ContentType, blob)
	cancel()
	if err != nil {
		rec.Metadata.Sync.Error = "remote blob: " + err.Error()
		syncOutcomesTotal.WithLabelValues("blob_failed").Inc()
		log.Warn(ctx, "remote blob upload failed", "path", path, "error", err)
		return false
	}
	rec.RemoteStoragePath = path
	rec.Metadata.Sync.RemoteBlob = true

	err = common.ErrNotConfigured
	if s.ledger != nil {
		lctx, cancel := s.remoteCtx(ctx)
		err = s.insertRow(lctx, rec, actorID)
		cancel()
	}
	if err != nil {
		rec.Metadata.Sync.Error = "remote metadata: " + err.Error()
		syncOutcomesTotal.WithLabelValues("metadata_failed").Inc()
		s.recordOrphan(ctx, log, rec.EvidenceID, path)
		log.Warn(ctx, "remote metadata insert failed, remote blob left without row", "path", path, "error", err)
		return false
	}

	rec.Metadata.Sync.RemoteMetadata = true
	syncOutcomesTotal.WithLabelValues("synced").Inc()
	return true
}

func (s *EvidenceStore) insertRow(ctx context.Context, rec *models.EvidenceRecord, actorID string) error {
	audit, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encode audit: %w", err)
	}
	return s.ledger.InsertEvidence(ctx, ledger.EvidenceRow{
		EvidenceID:  rec.EvidenceID,
		ActorID:     actorID,
		Hash:        rec.Hash,
		CreatedAt:   rec.CreatedAt,
		Location:    rec.Location,
		StoragePath: rec.RemoteStoragePath,
		SealStatus:  string(rec.Status),
		Audit:       audit,
	})
}

// recordOrphan notes a remote blob that has no metadata row. Nothing
// reconciles these automatically; they are listed by OrphanedBlobs.
func (s *EvidenceStore) recordOrphan(ctx context.Context, log logging.Logger, evidenceID, path string) {
	if err := s.kv.Set(ctx, common.OrphanedBlobPrefix+evidenceID, []byte(path)); err != nil {
		log.Warn(ctx, "failed to record orphaned remote blob", "path", path, "error", err)
	}
}

// OrphanedBlobs maps evidence id to remote path for every blob uploaded
// without its metadata row.
func (s *EvidenceStore) OrphanedBlobs(ctx context.Context) (map[string]string, error) {
	pairs, err := s.kv.ListPrefix(ctx, common.OrphanedBlobPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	out := make(map[string]string, len(pairs))
	for k, v := range pairs {
		out[strings.TrimPrefix(k, common.OrphanedBlobPrefix)] = string(v)
	}
	return out, nil
}

// reserve claims rec.EvidenceID for the duration of a save. When the id is
// already stored or in flight with another hash, rec is re-keyed first.
func (s *EvidenceStore) reserve(ctx context.Context, rec *models.EvidenceRecord) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idTaken(ctx, rec.EvidenceID, rec.Hash) {
		prev := rec.EvidenceID
		rec.EvidenceID = s.newID()
		s.logger.Warn(ctx, "evidence id already used for another hash, re-keyed",
			"evidence_id", prev, "new_evidence_id", rec.EvidenceID)
	}

	id := rec.EvidenceID
	s.pending[id] = rec.Hash
	return func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}
}

// idTaken reports whether id belongs to a record with a hash other than
// hash. Callers hold mu.
func (s *EvidenceStore) idTaken(ctx context.Context, id, hash string) bool {
	if h, ok := s.pending[id]; ok && h != hash {
		return true
	}
	history, err := s.loadHistory(ctx)
	if err != nil {
		return false
	}
	for _, h := range history {
		if h.EvidenceID == id {
			return h.Hash != hash
		}
	}
	return false
}

func (s *EvidenceStore) prepend(ctx context.Context, rec models.EvidenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadHistory(ctx)
	if err != nil {
		return err
	}

	next := make([]models.EvidenceRecord, 0, len(history)+1)
	next = append(next, rec)
	for _, h := range history {
		if h.EvidenceID != rec.EvidenceID {
			next = append(next, h)
			continue
		}
		if h.Hash != rec.Hash {
			return fmt.Errorf("%w: %s", ErrEvidenceConflict, rec.EvidenceID)
		}
	}

	b, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.kv.Set(ctx, common.HistoryStorageKey, b)
}

// loadHistory reads the history list. A list that no longer decodes is moved
// aside under a backup key and replaced with an empty one.
func (s *EvidenceStore) loadHistory(ctx context.Context) ([]models.EvidenceRecord, error) {
	raw, err := s.kv.Get(ctx, common.HistoryStorageKey)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var history []models.EvidenceRecord
	if err := json.Unmarshal(raw, &history); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", common.HistoryStorageKey, s.now().UnixNano())
		if berr := s.kv.Set(ctx, backup, raw); berr != nil {
			return nil, fmt.Errorf("history unreadable (%v) and backup failed: %w", err, berr)
		}
		s.logger.Error(ctx, "history list unreadable, moved aside", "backup_key", backup, "error", err)
		return nil, nil
	}
	return history, nil
}

// History returns all records, most recent first.
func (s *EvidenceStore) History(ctx context.Context) ([]models.EvidenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	if history == nil {
		history = []models.EvidenceRecord{}
	}
	return history, nil
}

// ByID returns the record with id, or (nil, nil) when there is none.
func (s *EvidenceStore) ByID(ctx context.Context, id string) (*models.EvidenceRecord, error) {
	return s.find(ctx, func(r *models.EvidenceRecord) bool { return r.EvidenceID == id })
}

// ByHash returns the most recent record whose hash matches, or (nil, nil).
func (s *EvidenceStore) ByHash(ctx context.Context, hash string) (*models.EvidenceRecord, error) {
	hash = strings.ToLower(hash)
	return s.find(ctx, func(r *models.EvidenceRecord) bool { return strings.ToLower(r.Hash) == hash })
}

func (s *EvidenceStore) find(ctx context.Context, match func(*models.EvidenceRecord) bool) (*models.EvidenceRecord, error) {
	history, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if match(&history[i]) {
			rec := history[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// Blob returns the locally stored payload of id, or (nil, nil).
func (s *EvidenceStore) Blob(ctx context.Context, id string) (*models.Blob, error) {
	b, err := s.blobs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return b, nil
}

// Clear removes the history list, every local blob and the orphan notes.
func (s *EvidenceStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.tx != nil {
		err = s.tx.InTx(ctx, clearEvidence)
	} else {
		err = clearEvidence(ctx, s.kv, s.blobs)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}

func clearEvidence(ctx context.Context, kv metadata.Repository, blobRepo blobs.Repository) error {
	if err := kv.Delete(ctx, common.HistoryStorageKey); err != nil {
		return err
	}
	if err := blobRepo.Clear(ctx); err != nil {
		return err
	}
	orphans, err := kv.ListPrefix(ctx, common.OrphanedBlobPrefix)
	if err != nil {
		return err
	}
	for k := range orphans {
		if err := kv.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
