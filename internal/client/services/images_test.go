package services

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/cryptox"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBlobs map[string]*models.Blob

func (m mapBlobs) Blob(_ context.Context, id string) (*models.Blob, error) {
	return m[id], nil
}

func filePath(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "file", u.Scheme)
	return filepath.FromSlash(u.Path)
}

func TestResolve_PrefersUnmodifiedSourceFile(t *testing.T) {
	data := []byte("original capture")
	src := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(src, data, 0o600))

	r := NewImageResolver(mapBlobs{}, newFakeObjects(), time.Hour, t.TempDir(), logging.Nop())
	rec := &models.EvidenceRecord{EvidenceID: "e", Hash: cryptox.Fingerprint(data), SourcePath: src, RemoteStoragePath: "a/e.jpg"}

	img, err := r.Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, models.DisplayLocalFile, img.Source)
	assert.Equal(t, src, filePath(t, img.URL))
}

func TestResolve_ModifiedSourceFallsBackToBlob(t *testing.T) {
	src := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte("edited"), 0o600))

	blobs := mapBlobs{"e": {Key: "e", Data: []byte("original"), ContentType: "image/png"}}
	cacheDir := t.TempDir()
	r := NewImageResolver(blobs, nil, time.Hour, cacheDir, logging.Nop())
	rec := &models.EvidenceRecord{EvidenceID: "e", Hash: cryptox.Fingerprint([]byte("original")), SourcePath: src, LocalBlobRef: "blob:e"}

	img, err := r.Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, models.DisplayLocalBlob, img.Source)

	path := filePath(t, img.URL)
	assert.Equal(t, filepath.Join(cacheDir, "e.png"), path)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestResolve_TamperedBlobIsSkipped(t *testing.T) {
	blobs := mapBlobs{"e": {Key: "e", Data: []byte("tampered"), ContentType: "image/jpeg"}}
	objects := newFakeObjects()
	cacheDir := t.TempDir()
	r := NewImageResolver(blobs, objects, time.Hour, cacheDir, logging.Nop())
	rec := &models.EvidenceRecord{
		EvidenceID:        "e",
		Hash:              cryptox.Fingerprint([]byte("original")),
		LocalBlobRef:      "blob:e",
		RemoteStoragePath: "a/e.jpg",
	}

	img, err := r.Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, models.DisplaySignedURL, img.Source)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolve_SignedURLIsCached(t *testing.T) {
	objects := newFakeObjects()
	r := NewImageResolver(mapBlobs{}, objects, time.Hour, t.TempDir(), logging.Nop())
	rec := &models.EvidenceRecord{EvidenceID: "e", RemoteStoragePath: "actor/e.jpg"}

	first, err := r.Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, models.DisplaySignedURL, first.Source)
	assert.Equal(t, "https://s3.example/actor/e.jpg?sig=1", first.URL)

	second, err := r.Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, 1, objects.signs)
}

func TestResolve_SignFailureIsUnavailable(t *testing.T) {
	objects := newFakeObjects()
	objects.signErr = errBoom
	r := NewImageResolver(mapBlobs{}, objects, time.Hour, t.TempDir(), logging.Nop())

	img, err := r.Resolve(context.Background(), &models.EvidenceRecord{EvidenceID: "e", RemoteStoragePath: "a/e.jpg"})
	require.ErrorIs(t, err, errBoom)
	assert.False(t, img.Available())
}

func TestResolve_NothingAvailable(t *testing.T) {
	r := NewImageResolver(mapBlobs{}, nil, time.Hour, t.TempDir(), logging.Nop())

	img, err := r.Resolve(context.Background(), &models.EvidenceRecord{EvidenceID: "e", RemoteStoragePath: "a/e.jpg", LocalBlobRef: "blob:e"})
	require.NoError(t, err)
	assert.Equal(t, models.DisplayUnavailable, img.Source)

	img, err = r.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, img.Available())
}
