package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/cryptox"
	"github.com/dmitrijs2005/truecam/internal/filex"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	signedURLCacheSize = 256
	signedURLMargin    = 5 * time.Minute
)

// BlobGetter reads locally stored payloads.
type BlobGetter interface {
	Blob(ctx context.Context, id string) (*models.Blob, error)
}

// URLSigner mints short-lived read URLs for remote objects.
type URLSigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ImageResolver picks the best available handle to show an evidence
// payload: the capture source file, then the local blob, then a signed
// remote URL.
type ImageResolver struct {
	blobs    BlobGetter
	signer   URLSigner
	ttl      time.Duration
	cacheDir string
	logger   logging.Logger

	urls *expirable.LRU[string, string]
}

// NewImageResolver builds a resolver. signer may be nil when no remote store
// is configured. Local blobs are materialized under cacheDir.
func NewImageResolver(blobGetter BlobGetter, signer URLSigner, ttl time.Duration, cacheDir string, logger logging.Logger) *ImageResolver {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "truecam-display")
	}

	// A cached URL must still be valid for a while after it is handed out.
	cacheTTL := ttl - signedURLMargin
	if cacheTTL <= 0 {
		cacheTTL = ttl / 2
	}

	return &ImageResolver{
		blobs:    blobGetter,
		signer:   signer,
		ttl:      ttl,
		cacheDir: cacheDir,
		logger:   logger,
		urls:     expirable.NewLRU[string, string](signedURLCacheSize, nil, cacheTTL),
	}
}

// Resolve returns the display handle for rec. An error is returned only
// together with an unavailable image, when minting a signed URL failed.
func (r *ImageResolver) Resolve(ctx context.Context, rec *models.EvidenceRecord) (models.DisplayImage, error) {
	unavailable := models.DisplayImage{Source: models.DisplayUnavailable}
	if rec == nil {
		return unavailable, nil
	}
	log := r.logger.With("evidence_id", rec.EvidenceID)

	if u, ok := r.sourceFile(ctx, log, rec); ok {
		return models.DisplayImage{Source: models.DisplayLocalFile, URL: u}, nil
	}

	if u, ok := r.localBlob(ctx, log, rec); ok {
		return models.DisplayImage{Source: models.DisplayLocalBlob, URL: u}, nil
	}

	if rec.RemoteStoragePath != "" && r.signer != nil {
		u, err := r.signedURL(ctx, rec.RemoteStoragePath)
		if err != nil {
			log.Warn(ctx, "failed to sign remote url", "path", rec.RemoteStoragePath, "error", err)
			return unavailable, err
		}
		return models.DisplayImage{Source: models.DisplaySignedURL, URL: u}, nil
	}

	return unavailable, nil
}

// sourceFile accepts the capture file only while it still holds the sealed
// content.
func (r *ImageResolver) sourceFile(ctx context.Context, log logging.Logger, rec *models.EvidenceRecord) (string, bool) {
	if rec.SourcePath == "" || !filex.Exists(rec.SourcePath) {
		return "", false
	}
	hash, err := cryptox.FingerprintFile(rec.SourcePath)
	if err != nil {
		log.Debug(ctx, "source file unreadable", "path", rec.SourcePath, "error", err)
		return "", false
	}
	if hash != rec.Hash {
		log.Debug(ctx, "source file changed since capture", "path", rec.SourcePath)
		return "", false
	}
	abs, err := filepath.Abs(rec.SourcePath)
	if err != nil {
		return "", false
	}
	return fileURL(abs), true
}

func (r *ImageResolver) localBlob(ctx context.Context, log logging.Logger, rec *models.EvidenceRecord) (string, bool) {
	if rec.LocalBlobRef == "" {
		return "", false
	}
	b, err := r.blobs.Blob(ctx, rec.EvidenceID)
	if err != nil {
		log.Warn(ctx, "failed to read local blob", "error", err)
		return "", false
	}
	if b == nil {
		return "", false
	}
	if rec.Hash != "" && !cryptox.Matches(b.Data, rec.Hash) {
		log.Warn(ctx, "local blob does not match sealed fingerprint")
		return "", false
	}

	dir, err := filex.EnsureDir(r.cacheDir)
	if err != nil {
		log.Warn(ctx, "display cache unavailable", "error", err)
		return "", false
	}
	path := filepath.Join(dir, rec.EvidenceID+extensionFor(b.ContentType))
	if !filex.Exists(path) {
		if err := filex.WriteFileAtomic(path, b.Data, 0o600); err != nil {
			log.Warn(ctx, "failed to materialize local blob", "path", path, "error", err)
			return "", false
		}
	}
	return fileURL(path), true
}

func (r *ImageResolver) signedURL(ctx context.Context, key string) (string, error) {
	if u, ok := r.urls.Get(key); ok {
		signedURLCacheHitsTotal.Inc()
		return u, nil
	}
	signedURLCacheMissesTotal.Inc()

	u, err := r.signer.SignedURL(ctx, key, r.ttl)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", key, err)
	}
	r.urls.Add(key, u)
	return u, nil
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
