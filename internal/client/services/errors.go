package services

import (
	"errors"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/common"
)

var (
	ErrEmptyPayload = errors.New("empty payload")

	// ErrEvidenceConflict means an evidence id is already stored with another hash.
	ErrEvidenceConflict = errors.New("evidence id already used for a different hash")
)

// SealError is the cause attached to a LocalOnly outcome. It matches both
// its taxonomy kind (common.ErrAuth, common.ErrResource, ...) and the
// underlying transport error under errors.Is.
type SealError struct {
	Step models.Step
	Kind error
	Err  error
}

func (e *SealError) Error() string {
	if e.Err == nil {
		return string(e.Step)
	}
	return e.Err.Error()
}

func (e *SealError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func kindForStep(step models.Step) error {
	switch step {
	case models.StepAuthenticate:
		return common.ErrAuth
	case models.StepUpload:
		return common.ErrUpload
	case models.StepClose:
		return common.ErrFinalize
	default:
		return common.ErrResource
	}
}
