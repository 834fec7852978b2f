package services

import (
	"context"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/cryptox"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/google/uuid"
)

type SealRunner interface {
	Seal(ctx context.Context, req SealRequest) models.SealOutcome
}

// Store is what the capture flow needs from the evidence store.
type Store interface {
	Save(ctx context.Context, rec *models.EvidenceRecord, blob []byte, actorID string) error
	History(ctx context.Context) ([]models.EvidenceRecord, error)
	ByID(ctx context.Context, id string) (*models.EvidenceRecord, error)
}

type DisplayResolver interface {
	Resolve(ctx context.Context, rec *models.EvidenceRecord) (models.DisplayImage, error)
}

// CaptureRequest is one captured payload handed to the pipeline.
type CaptureRequest struct {
	Payload     []byte
	ContentType string
	// SourcePath is the file the payload was read from, if any. It is kept
	// so the source file can be displayed while it stays unmodified.
	SourcePath string
	Location   *models.Location
	// ActorID enables remote replication when set.
	ActorID    string
	CapturedAt time.Time
	Plan       *SealPlan
}

// CaptureService is the surface used by the UI: seal and persist a
// capture, then read it back.
type CaptureService struct {
	sealer SealRunner
	store  Store
	images DisplayResolver
	logger logging.Logger
	now    func() time.Time
	newID  func() string
}

func NewCaptureService(sealer SealRunner, store Store, images DisplayResolver, logger logging.Logger) *CaptureService {
	return &CaptureService{
		sealer: sealer,
		store:  store,
		images: images,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SealAndPersist fingerprints the payload, runs the sealing protocol and
// saves the resulting record. Sealing and remote replication failures are
// recorded on the record; an error is returned only when the record could
// not be saved locally, or the payload is empty.
func (s *CaptureService) SealAndPersist(ctx context.Context, req CaptureRequest) (*models.EvidenceRecord, error) {
	if len(req.Payload) == 0 {
		return nil, ErrEmptyPayload
	}

	createdAt := req.CapturedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	contentType := contentTypeOf(req.Payload, req.ContentType)
	hash := cryptox.Fingerprint(req.Payload)

	var fileName string
	if req.SourcePath != "" {
		fileName = filepath.Base(req.SourcePath)
	}

	outcome := s.sealer.Seal(ctx, SealRequest{
		Payload:     req.Payload,
		ContentType: contentType,
		FileName:    fileName,
		Location:    req.Location,
		Plan:        req.Plan,
	})

	rec := &models.EvidenceRecord{
		EvidenceID:  s.newID(),
		Hash:        hash,
		CreatedAt:   createdAt.UTC(),
		Status:      models.StatusPending,
		Location:    req.Location,
		ContentType: contentType,
		Size:        int64(len(req.Payload)),
		SourcePath:  req.SourcePath,
		Metadata:    models.NewAuditPayload(outcome),
	}
	if sealed, ok := outcome.(models.Sealed); ok {
		rec.Status = models.StatusSealed
		if sealed.ProviderEvidenceID != "" {
			rec.EvidenceID = sealed.ProviderEvidenceID
		}
	}

	if err := s.store.Save(ctx, rec, req.Payload, req.ActorID); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "capture saved",
		"evidence_id", rec.EvidenceID,
		"status", rec.Status,
		"synced", rec.Synced,
	)
	return rec, nil
}

// ListHistory returns every record, most recent first.
func (s *CaptureService) ListHistory(ctx context.Context) ([]models.EvidenceRecord, error) {
	return s.store.History(ctx)
}

// GetDetail returns the record with id, or (nil, nil).
func (s *CaptureService) GetDetail(ctx context.Context, id string) (*models.EvidenceRecord, error) {
	return s.store.ByID(ctx, id)
}

func (s *CaptureService) ResolveDisplayImage(ctx context.Context, rec *models.EvidenceRecord) (models.DisplayImage, error) {
	return s.images.Resolve(ctx, rec)
}
