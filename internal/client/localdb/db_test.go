package localdb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/truecam/internal/client/repositories/metadata"

	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpen_CreatesSchemaAndRepositories(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "truecam.db")

	repos, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer repos.Close()

	require.NoError(t, repos.DB.PingContext(ctx))
	for _, table := range []string{"goose_db_version", "metadata", "blobs"} {
		require.True(t, tableExists(t, repos.DB, table), "table %s must exist", table)
	}

	require.NoError(t, repos.Metadata.Set(ctx, "k", []byte("v")))
	v, err := repos.Metadata.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "truecam.db")

	repos, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, repos.Metadata.Set(ctx, "token", []byte("t1")))
	require.NoError(t, repos.Close())

	repos, err = Open(ctx, dsn)
	require.NoError(t, err)
	defer repos.Close()

	v, err := repos.Metadata.Get(ctx, "token")
	require.NoError(t, err)
	require.Equal(t, []byte("t1"), v)
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "app.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	require.Error(t, err)
}

func TestInTx_CommitsBothRepositories(t *testing.T) {
	ctx := context.Background()
	repos, err := Open(ctx, filepath.Join(t.TempDir(), "truecam.db"))
	require.NoError(t, err)
	defer repos.Close()

	err = repos.InTx(ctx, func(ctx context.Context, kv metadata.Repository, blobRepo blobs.Repository) error {
		if err := kv.Set(ctx, "k", []byte("v")); err != nil {
			return err
		}
		return blobRepo.Put(ctx, &models.Blob{Key: "b", Data: []byte{1}, ContentType: "image/jpeg"})
	})
	require.NoError(t, err)

	v, err := repos.Metadata.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	b, err := repos.Blobs.Get(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, b)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repos, err := Open(ctx, filepath.Join(t.TempDir(), "truecam.db"))
	require.NoError(t, err)
	defer repos.Close()

	require.NoError(t, repos.Metadata.Set(ctx, "keep", []byte("1")))

	boom := errors.New("boom")
	err = repos.InTx(ctx, func(ctx context.Context, kv metadata.Repository, _ blobs.Repository) error {
		if err := kv.Delete(ctx, "keep"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, err := repos.Metadata.Get(ctx, "keep")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
}
