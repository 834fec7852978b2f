// Package models defines the client-side data model of the evidence pipeline.
package models

import (
	"time"
)

type EvidenceStatus string

const (
	StatusPending EvidenceStatus = "pending"
	StatusSealed  EvidenceStatus = "sealed"
)

// Location is a geospatial reading taken at capture time.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// EvidenceRecord is the durable unit of truth for one capture.
//
// Hash, CreatedAt and Location are fixed when the record is built and are
// never rewritten. Synced is true only when both the remote blob and the
// remote metadata row were written.
type EvidenceRecord struct {
	EvidenceID        string         `json:"evidence_id"`
	Hash              string         `json:"hash"`
	CreatedAt         time.Time      `json:"created_at"`
	Status            EvidenceStatus `json:"status"`
	Location          *Location      `json:"location,omitempty"`
	ContentType       string         `json:"content_type,omitempty"`
	Size              int64          `json:"size"`
	SourcePath        string         `json:"source_path,omitempty"`
	LocalBlobRef      string         `json:"local_blob_ref,omitempty"`
	RemoteStoragePath string         `json:"remote_storage_path,omitempty"`
	Synced            bool           `json:"synced"`
	Metadata          AuditPayload   `json:"metadata"`
}

// Blob is a binary payload kept in local blob storage.
type Blob struct {
	Key         string
	Data        []byte
	ContentType string
	CreatedAt   time.Time
}

type DisplaySource string

const (
	DisplayLocalFile   DisplaySource = "local_file"
	DisplayLocalBlob   DisplaySource = "local_blob"
	DisplaySignedURL   DisplaySource = "signed_url"
	DisplayUnavailable DisplaySource = "unavailable"
)

// DisplayImage tells a viewer where to load a record's image from.
type DisplayImage struct {
	Source DisplaySource
	URL    string
}

func (d DisplayImage) Available() bool {
	return d.Source != DisplayUnavailable && d.URL != ""
}
