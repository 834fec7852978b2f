// Package cryptox implements the content fingerprint used to bind a captured
// payload to its seal and to verify it later against the ledger.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// FingerprintSize is the length of a fingerprint in hex characters.
const FingerprintSize = sha256.Size * 2

// Fingerprint returns the lowercase hex SHA-256 digest of data.
//
// The output depends only on the bytes of data, so a file hashed on the
// capturing device and the same file hashed later by a verifier produce the
// same string.
//
// Example:
//
//	h := cryptox.Fingerprint([]byte("abc"))
//	// h == "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintReader streams r through SHA-256. Read errors are returned as is;
// a partial digest is never produced.
func FingerprintReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("fingerprint read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint open: %w", err)
	}
	defer f.Close()

	return FingerprintReader(f)
}

// Matches reports whether data fingerprints to want. Case of want is ignored.
func Matches(data []byte, want string) bool {
	got := Fingerprint(data)
	want = strings.ToLower(strings.TrimSpace(want))
	if len(want) != FingerprintSize {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
