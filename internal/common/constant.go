// Package common contains shared constants and sentinel errors used across
// the TrueCam client, the sealing pipeline and the intermediary server.
package common

// Local key-value storage keys.
const (
	TokenStorageKey    = "qtsp_access_token"
	CaseStorageKey     = "qtsp_active_case_file_id"
	HistoryStorageKey  = "truecam_evidence_log"
	OrphanedBlobPrefix = "truecam_orphaned_blob:"
)

// AuthorizationHeaderName carries the bearer token on provider calls.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "
