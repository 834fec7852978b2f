package blobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, b *models.Blob) error {
	if b == nil || b.Key == "" {
		return errors.New("blob key is required")
	}
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	data := b.Data
	if data == nil {
		data = []byte{}
	}

	query := `INSERT INTO blobs (key, data, content_type, size, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				data = excluded.data,
				content_type = excluded.content_type,
				size = excluded.size,
				created_at = excluded.created_at
	`
	_, err := r.db.ExecContext(ctx, query, b.Key, data, b.ContentType, len(data), createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to put blob[%s]: %w", b.Key, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (*models.Blob, error) {
	query := `SELECT key, data, content_type, created_at FROM blobs WHERE key = ?`

	var (
		b         models.Blob
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, query, key).Scan(&b.Key, &b.Data, &b.ContentType, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob[%s]: %w", key, err)
	}

	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		b.CreatedAt = t
	}
	return &b, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete blob[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM blobs`)
	if err != nil {
		return fmt.Errorf("failed to clear blobs: %w", err)
	}
	return nil
}
