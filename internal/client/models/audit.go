package models

import "time"

// AuditVersion is bumped whenever the shape of AuditPayload changes.
const AuditVersion = 1

// AuditPayload is the typed audit trail attached to each EvidenceRecord.
type AuditPayload struct {
	Version int       `json:"version"`
	Seal    SealAudit `json:"seal"`
	Sync    SyncAudit `json:"sync"`
}

type SealAudit struct {
	Status             SealStatus `json:"status"`
	ProviderEvidenceID string     `json:"provider_evidence_id,omitempty"`
	CaseID             string     `json:"case_id,omitempty"`
	GroupID            string     `json:"group_id,omitempty"`
	DecidedAt          time.Time  `json:"decided_at"`
	FailedStep         Step       `json:"failed_step,omitempty"`
	Reason             string     `json:"reason,omitempty"`
	CloseError         string     `json:"close_error,omitempty"`
}

type SyncAudit struct {
	ActorID        string     `json:"actor_id,omitempty"`
	AttemptedAt    *time.Time `json:"attempted_at,omitempty"`
	RemoteBlob     bool       `json:"remote_blob"`
	RemoteMetadata bool       `json:"remote_metadata"`
	LocalBlobError string     `json:"local_blob_error,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// NewAuditPayload captures the seal half of the audit trail from an outcome.
func NewAuditPayload(o SealOutcome) AuditPayload {
	p := AuditPayload{Version: AuditVersion}
	if o == nil {
		return p
	}

	res := o.Resources()
	p.Seal = SealAudit{
		Status:             o.Status(),
		ProviderEvidenceID: res.ProviderEvidenceID,
		CaseID:             res.CaseID,
		GroupID:            res.GroupID,
		DecidedAt:          o.Timestamp(),
	}

	switch v := o.(type) {
	case Sealed:
		p.Seal.CloseError = v.CloseError
	case LocalOnly:
		p.Seal.FailedStep = v.Step
		p.Seal.Reason = v.Error()
	}
	return p
}
