// Package blobs is the local durable store of captured binary payloads,
// keyed by evidence identifier.
package blobs

import (
	"context"

	"github.com/dmitrijs2005/truecam/internal/client/models"
)

// Repository stores binary payloads by string key.
type Repository interface {
	// Put inserts or replaces the blob stored under b.Key.
	Put(ctx context.Context, b *models.Blob) error

	// Get returns the blob for key, or (nil, nil) when there is none.
	Get(ctx context.Context, key string) (*models.Blob, error)

	Delete(ctx context.Context, key string) error

	// Clear removes every stored blob.
	Clear(ctx context.Context) error
}
