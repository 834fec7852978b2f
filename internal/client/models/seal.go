package models

import (
	"fmt"
	"time"
)

type SealStatus string

const (
	SealStatusSealed    SealStatus = "sealed"
	SealStatusLocalOnly SealStatus = "local_only"
)

// State is a position in the per-capture sealing protocol.
type State string

const (
	StateStart              State = "START"
	StateAuthenticated      State = "AUTHENTICATED"
	StateCaseResolved       State = "CASE_RESOLVED"
	StateGroupCreated       State = "GROUP_CREATED"
	StateEvidenceRegistered State = "EVIDENCE_REGISTERED"
	StateUploadURLObtained  State = "UPLOAD_URL_OBTAINED"
	StateContentUploaded    State = "CONTENT_UPLOADED"
	StateSealed             State = "SEALED"
	StateLocalOnly          State = "LOCAL_ONLY"
)

// Step is one remote call of the sealing protocol.
type Step string

const (
	StepAuthenticate     Step = "authenticate"
	StepResolveCase      Step = "resolve_case"
	StepCreateGroup      Step = "create_group"
	StepRegisterEvidence Step = "register_evidence"
	StepGetUploadURL     Step = "get_upload_url"
	StepUpload           Step = "upload"
	StepClose            Step = "close"
)

var stepReasons = map[Step]string{
	StepAuthenticate:     "auth failed",
	StepResolveCase:      "case resolution failed",
	StepCreateGroup:      "group creation failed",
	StepRegisterEvidence: "evidence registration failed",
	StepGetUploadURL:     "upload url failed",
	StepUpload:           "upload failed",
	StepClose:            "close failed",
}

// FailureReason is the short human-readable reason for a failure at s.
func (s Step) FailureReason() string {
	if r, ok := stepReasons[s]; ok {
		return r
	}
	return string(s) + " failed"
}

// Next returns the state reached when s succeeds.
func (s Step) Next() State {
	switch s {
	case StepAuthenticate:
		return StateAuthenticated
	case StepResolveCase:
		return StateCaseResolved
	case StepCreateGroup:
		return StateGroupCreated
	case StepRegisterEvidence:
		return StateEvidenceRegistered
	case StepGetUploadURL:
		return StateUploadURLObtained
	case StepUpload:
		return StateContentUploaded
	case StepClose:
		return StateSealed
	default:
		return StateLocalOnly
	}
}

// SealResources are the provider identifiers obtained during a run.
type SealResources struct {
	CaseID             string
	GroupID            string
	ProviderEvidenceID string
}

// SealOutcome is either Sealed or LocalOnly. Use a type switch:
//
//	switch o := outcome.(type) {
//	case models.Sealed:
//	case models.LocalOnly:
//	}
type SealOutcome interface {
	Status() SealStatus
	Timestamp() time.Time
	Resources() SealResources
	sealOutcome()
}

// Sealed means steps up to and including the upload succeeded. CloseError is
// set when the final close call failed; the artifact is still on the
// provider side so the outcome stays sealed.
type Sealed struct {
	SealResources
	At         time.Time
	CloseError string
}

func (Sealed) Status() SealStatus         { return SealStatusSealed }
func (s Sealed) Timestamp() time.Time     { return s.At }
func (s Sealed) Resources() SealResources { return s.SealResources }
func (Sealed) sealOutcome()               {}

// LocalOnly means the protocol stopped at Step; the capture is kept locally.
type LocalOnly struct {
	SealResources
	At     time.Time
	Step   Step
	Reason string
	Err    error
}

func (LocalOnly) Status() SealStatus         { return SealStatusLocalOnly }
func (l LocalOnly) Timestamp() time.Time     { return l.At }
func (l LocalOnly) Resources() SealResources { return l.SealResources }
func (LocalOnly) sealOutcome()               {}

func (l LocalOnly) Error() string {
	if l.Err == nil {
		return l.Reason
	}
	return fmt.Sprintf("%s: %v", l.Reason, l.Err)
}
