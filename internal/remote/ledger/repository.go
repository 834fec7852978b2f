// Package ledger is the remote evidence database: one metadata row per
// evidence identifier plus a hash lookup used for independent verification.
package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/models"
)

// EvidenceRow is the remote metadata row written after a successful blob upload.
type EvidenceRow struct {
	EvidenceID  string
	ActorID     string
	Hash        string
	CreatedAt   time.Time
	Location    *models.Location
	StoragePath string
	SealStatus  string
	Audit       json.RawMessage
}

// Match is the zero-or-one answer of a hash lookup.
type Match struct {
	EvidenceID string
	VerifiedAt time.Time
	Latitude   *float64
	Longitude  *float64
}

type Repository interface {
	InsertEvidence(ctx context.Context, row EvidenceRow) error
	// FindByHash returns (nil, nil) when no row carries hash.
	FindByHash(ctx context.Context, hash string) (*Match, error)
}
