// Package localdb opens the on-device SQLite database and applies its schema.
package localdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/truecam/internal/client/migrations"
	"github.com/dmitrijs2005/truecam/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/truecam/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/truecam/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories bundles the local stores built on one database handle.
type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
	Blobs    blobs.Repository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

// InTx runs fn with metadata and blob repositories bound to one transaction.
// fn must not touch r.Metadata or r.Blobs: the pool holds a single connection.
func (r *Repositories) InTx(ctx context.Context, fn func(ctx context.Context, kv metadata.Repository, blobRepo blobs.Repository) error) error {
	return dbx.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, metadata.NewSQLiteRepository(tx), blobs.NewSQLiteRepository(tx))
	})
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens the SQLite database at dsn, applies the pragmas needed for a
// single-writer embedded store and runs migrations.
func Open(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Blobs:    blobs.NewSQLiteRepository(db),
	}, nil
}
