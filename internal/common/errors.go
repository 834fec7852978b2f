// Package common defines shared constants and sentinel errors. Callers should
// use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Sealing and persistence taxonomy.
	ErrAuth     = errors.New("auth error")
	ErrResource = errors.New("resource error")
	ErrUpload   = errors.New("upload error")
	ErrFinalize = errors.New("finalize error")
	ErrStorage  = errors.New("storage error")

	// ErrNotConfigured is returned by optional remote collaborators that
	// have no endpoint configured.
	ErrNotConfigured = errors.New("not configured")
)
