// Package metadata is the local key-value store backing the token cache,
// the cached case identifier and the evidence history list.
package metadata

import (
	"context"
)

// Repository is a durable string-keyed store of opaque values.
// Get returns (nil, nil) when the key is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
