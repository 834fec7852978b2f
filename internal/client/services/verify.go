package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/cryptox"
	"github.com/dmitrijs2005/truecam/internal/remote/ledger"
)

var ErrInvalidHash = errors.New("invalid fingerprint")

type HashFinder interface {
	ByHash(ctx context.Context, hash string) (*models.EvidenceRecord, error)
}

// Verification is the result of looking a fingerprint up in the remote
// ledger and in the local history.
type Verification struct {
	Hash   string
	Ledger *ledger.Match
	Local  *models.EvidenceRecord
}

func (v *Verification) Found() bool {
	return v.Ledger != nil || v.Local != nil
}

// Verifier checks whether content was previously captured.
type Verifier struct {
	ledger ledger.Repository
	local  HashFinder
}

// NewVerifier builds a verifier; ledgerRepo may be nil when no remote
// database is configured.
func NewVerifier(ledgerRepo ledger.Repository, local HashFinder) *Verifier {
	return &Verifier{ledger: ledgerRepo, local: local}
}

func (v *Verifier) Verify(ctx context.Context, payload []byte) (*Verification, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	return v.VerifyHash(ctx, cryptox.Fingerprint(payload))
}

func (v *Verifier) VerifyFile(ctx context.Context, path string) (*Verification, error) {
	hash, err := cryptox.FingerprintFile(path)
	if err != nil {
		return nil, err
	}
	return v.VerifyHash(ctx, hash)
}

// VerifyHash looks up a hex fingerprint. Ledger errors are returned; a
// failure of the local lookup is not, since the ledger is authoritative.
func (v *Verifier) VerifyHash(ctx context.Context, hash string) (*Verification, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) != cryptox.FingerprintSize {
		return nil, fmt.Errorf("%w: want %d hex characters", ErrInvalidHash, cryptox.FingerprintSize)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}

	res := &Verification{Hash: hash}

	if v.local != nil {
		if rec, err := v.local.ByHash(ctx, hash); err == nil {
			res.Local = rec
		}
	}

	if v.ledger != nil {
		m, err := v.ledger.FindByHash(ctx, hash)
		if err != nil {
			return res, fmt.Errorf("ledger lookup: %w", err)
		}
		res.Ledger = m
	}
	return res, nil
}
