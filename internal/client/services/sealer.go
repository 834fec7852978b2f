package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/client/qtsp"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/google/uuid"
)

const groupDescription = "Initial Evidence Group"

// Provider is the subset of the provider API driven per capture.
type Provider interface {
	CreateGroup(ctx context.Context, token, caseID string, req qtsp.CreateGroupRequest) (string, error)
	RegisterEvidence(ctx context.Context, token, caseID, groupID string, req qtsp.RegisterEvidenceRequest) (string, error)
	GetUploadURL(ctx context.Context, token, caseID, groupID, evidenceID string) (string, error)
	Upload(ctx context.Context, uploadURL, contentType string, payload []byte) error
	CloseGroup(ctx context.Context, token, caseID, groupID string) error
}

type CaseResolver interface {
	Resolve(ctx context.Context) (string, error)
	Invalidate(ctx context.Context, caseID string)
}

// SealPlan carries the client-generated idempotency keys of one capture.
// Reusing a plan when retrying the same capture keeps the provider from
// creating duplicate groups or evidences.
type SealPlan struct {
	GroupID    string
	EvidenceID string
}

func NewSealPlan() *SealPlan {
	return &SealPlan{GroupID: uuid.NewString(), EvidenceID: uuid.NewString()}
}

type SealRequest struct {
	Payload     []byte
	ContentType string
	FileName    string
	Location    *models.Location
	Plan        *SealPlan
}

// Sealer runs the provider's five-step sealing protocol for one capture.
// It never fails: every error ends in a LocalOnly outcome.
type Sealer struct {
	provider Provider
	tokens   TokenSource
	cases    CaseResolver
	logger   logging.Logger
	now      func() time.Time
}

func NewSealer(provider Provider, tokens TokenSource, cases CaseResolver, logger logging.Logger) *Sealer {
	return &Sealer{provider: provider, tokens: tokens, cases: cases, logger: logger, now: time.Now}
}

type sealRun struct {
	s     *Sealer
	req   SealRequest
	plan  SealPlan
	state models.State
	token string
	res   models.SealResources
	log   logging.Logger
}

func (s *Sealer) Seal(ctx context.Context, req SealRequest) (outcome models.SealOutcome) {
	plan := req.Plan
	if plan == nil {
		plan = NewSealPlan()
	}
	if plan.GroupID == "" {
		plan.GroupID = uuid.NewString()
	}
	if plan.EvidenceID == "" {
		plan.EvidenceID = uuid.NewString()
	}

	run := &sealRun{
		s:     s,
		req:   req,
		plan:  *plan,
		state: models.StateStart,
		log:   s.logger.With("group_id", plan.GroupID, "evidence_key", plan.EvidenceID),
	}
	run.req.ContentType = contentTypeOf(req.Payload, req.ContentType)

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("panic: %v", r)
			if run.state == models.StateContentUploaded {
				outcome = run.sealed(ctx, run.closeFailed(ctx, perr))
			} else {
				outcome = run.fail(ctx, run.nextStep(), perr)
			}
		}
		sealOutcomesTotal.WithLabelValues(string(outcome.Status())).Inc()
	}()

	return run.execute(ctx)
}

func (r *sealRun) execute(ctx context.Context) models.SealOutcome {
	var err error

	r.token, err = r.s.tokens.Token(ctx)
	if err != nil {
		return r.fail(ctx, models.StepAuthenticate, err)
	}
	r.advance(ctx, models.StepAuthenticate)

	r.res.CaseID, err = r.s.cases.Resolve(ctx)
	if err != nil {
		return r.fail(ctx, models.StepResolveCase, err)
	}
	r.advance(ctx, models.StepResolveCase)

	if err := r.createGroup(ctx); err != nil {
		return r.fail(ctx, models.StepCreateGroup, err)
	}
	r.advance(ctx, models.StepCreateGroup)

	if err := r.registerEvidence(ctx); err != nil {
		return r.fail(ctx, models.StepRegisterEvidence, err)
	}
	r.advance(ctx, models.StepRegisterEvidence)

	var uploadURL string
	r.token, err = withTokenRetry(ctx, r.s.tokens, r.token, func(token string) error {
		var cerr error
		uploadURL, cerr = r.s.provider.GetUploadURL(ctx, token, r.res.CaseID, r.res.GroupID, r.res.ProviderEvidenceID)
		return cerr
	})
	if err != nil {
		return r.fail(ctx, models.StepGetUploadURL, err)
	}
	r.advance(ctx, models.StepGetUploadURL)

	// Registered-but-empty evidence is left for provider-side cleanup.
	if err := r.s.provider.Upload(ctx, uploadURL, r.req.ContentType, r.req.Payload); err != nil {
		return r.fail(ctx, models.StepUpload, err)
	}
	r.advance(ctx, models.StepUpload)

	var closeErr string
	_, err = withTokenRetry(ctx, r.s.tokens, r.token, func(token string) error {
		return r.s.provider.CloseGroup(ctx, token, r.res.CaseID, r.res.GroupID)
	})
	if err != nil {
		closeErr = r.closeFailed(ctx, err)
	}

	return r.sealed(ctx, closeErr)
}

// closeFailed records a close failure. The content is already with the
// provider, so the outcome stays Sealed.
func (r *sealRun) closeFailed(ctx context.Context, err error) string {
	serr := &SealError{Step: models.StepClose, Kind: kindForStep(models.StepClose), Err: err}
	sealStepFailuresTotal.WithLabelValues(string(models.StepClose)).Inc()
	r.log.Warn(ctx, "close failed, keeping sealed outcome", "case_id", r.res.CaseID, "error", err)
	return serr.Error()
}

func (r *sealRun) sealed(ctx context.Context, closeErr string) models.Sealed {
	r.advance(ctx, models.StepClose)
	r.log.Info(ctx, "evidence sealed", "case_id", r.res.CaseID, "provider_evidence_id", r.res.ProviderEvidenceID)
	return models.Sealed{SealResources: r.res, At: r.s.now().UTC(), CloseError: closeErr}
}

// createGroup creates the per-capture group. When the provider no longer
// knows the cached case, the case is recreated once and the same group id
// is retried against it.
func (r *sealRun) createGroup(ctx context.Context) error {
	req := qtsp.CreateGroupRequest{
		ID:          r.plan.GroupID,
		Name:        fmt.Sprintf("Evidence-%d", r.s.now().UnixMilli()),
		Description: groupDescription,
	}

	call := func(token string) error {
		var cerr error
		r.res.GroupID, cerr = r.s.provider.CreateGroup(ctx, token, r.res.CaseID, req)
		return cerr
	}

	var err error
	r.token, err = withTokenRetry(ctx, r.s.tokens, r.token, call)
	if err == nil || !errors.Is(err, qtsp.ErrNotFound) {
		return err
	}

	stale := r.res.CaseID
	r.log.Warn(ctx, "case not found by provider, recreating", "case_id", stale)
	r.s.cases.Invalidate(ctx, stale)

	caseID, rerr := r.s.cases.Resolve(ctx)
	if rerr != nil {
		return fmt.Errorf("%w (case recreation failed: %v)", err, rerr)
	}
	r.res.CaseID = caseID

	r.token, err = withTokenRetry(ctx, r.s.tokens, r.token, call)
	return err
}

func (r *sealRun) registerEvidence(ctx context.Context) error {
	fileName := r.req.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("evidence_%d%s", r.s.now().UnixMilli(), extensionFor(r.req.ContentType))
	}
	req := qtsp.RegisterEvidenceRequest{
		ID:       r.plan.EvidenceID,
		FileName: fileName,
		FileSize: int64(len(r.req.Payload)),
		Hash:     "",
		Metadata: qtsp.EvidenceMetadata{Location: r.req.Location},
	}

	var err error
	r.token, err = withTokenRetry(ctx, r.s.tokens, r.token, func(token string) error {
		var cerr error
		r.res.ProviderEvidenceID, cerr = r.s.provider.RegisterEvidence(ctx, token, r.res.CaseID, r.res.GroupID, req)
		return cerr
	})
	return err
}

func (r *sealRun) advance(ctx context.Context, step models.Step) {
	r.state = step.Next()
	r.log.Debug(ctx, "seal step done", "step", step, "state", r.state)
}

// nextStep is the step that was running when the run stopped.
func (r *sealRun) nextStep() models.Step {
	switch r.state {
	case models.StateStart:
		return models.StepAuthenticate
	case models.StateAuthenticated:
		return models.StepResolveCase
	case models.StateCaseResolved:
		return models.StepCreateGroup
	case models.StateGroupCreated:
		return models.StepRegisterEvidence
	case models.StateEvidenceRegistered:
		return models.StepGetUploadURL
	case models.StateUploadURLObtained:
		return models.StepUpload
	default:
		return models.StepClose
	}
}

func (r *sealRun) fail(ctx context.Context, step models.Step, err error) models.LocalOnly {
	serr := &SealError{Step: step, Kind: kindForStep(step), Err: err}
	r.state = models.StateLocalOnly
	sealStepFailuresTotal.WithLabelValues(string(step)).Inc()
	r.log.Warn(ctx, "sealing degraded to local only", "step", step, "reason", step.FailureReason(), "error", err)

	return models.LocalOnly{
		SealResources: r.res,
		At:            r.s.now().UTC(),
		Step:          step,
		Reason:        step.FailureReason(),
		Err:           serr,
	}
}
