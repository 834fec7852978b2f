package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/config"
	"github.com/dmitrijs2005/truecam/internal/client/localdb"
	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/client/qtsp"
	"github.com/dmitrijs2005/truecam/internal/client/services"
	"github.com/dmitrijs2005/truecam/internal/logging"
	"github.com/dmitrijs2005/truecam/internal/remote/ledger"
	"github.com/dmitrijs2005/truecam/internal/remote/objectstore"
	"github.com/prometheus/client_golang/prometheus"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const onlineCheckInterval = 5 * time.Second

type captureService interface {
	SealAndPersist(ctx context.Context, req services.CaptureRequest) (*models.EvidenceRecord, error)
	ListHistory(ctx context.Context) ([]models.EvidenceRecord, error)
	GetDetail(ctx context.Context, id string) (*models.EvidenceRecord, error)
	ResolveDisplayImage(ctx context.Context, rec *models.EvidenceRecord) (models.DisplayImage, error)
}

type evidenceAdmin interface {
	Clear(ctx context.Context) error
	OrphanedBlobs(ctx context.Context) (map[string]string, error)
}

type fileVerifier interface {
	VerifyFile(ctx context.Context, path string) (*services.Verification, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	capture  captureService
	admin    evidenceAdmin
	verifier fileVerifier
	pinger   pinger
	gatherer prometheus.Gatherer
	out      io.Writer

	mu      sync.RWMutex
	actorID string
	Mode    Mode

	closers []func() error
}

// NewApp opens the local database and builds the sealing pipeline. The
// object store and the ledger are only wired when configured.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	repos, err := localdb.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	a := &App{config: c, logger: logger, actorID: c.ActorID, gatherer: prometheus.DefaultGatherer, out: os.Stdout}
	a.closers = append(a.closers, repos.Close)

	provider := qtsp.NewClient(c.ProxyURL, &http.Client{}, c.RequestTimeout)
	tokens := services.NewTokenCache(provider, repos.Metadata, logger)
	cases := services.NewCaseManager(provider, tokens, repos.Metadata, logger, c.CaseNamePrefix)
	sealer := services.NewSealer(provider, tokens, cases, logger)

	var objects services.ObjectStore
	if c.RemoteBlobsEnabled() {
		s3, err := objectstore.New(ctx, objectstore.Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			UsePathStyle: c.S3BaseEndpoint != "",
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		objects = s3
	}

	var ledgerRepo ledger.Repository
	if c.LedgerEnabled() {
		db, repo, err := ledger.Open(ctx, c.LedgerDSN)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		ledgerRepo = repo
	}

	store := services.NewEvidenceStore(repos.Metadata, repos.Blobs, objects, ledgerRepo, logger).
		WithTransactor(repos).
		WithRemoteTimeout(c.RequestTimeout)

	var signer services.URLSigner
	if objects != nil {
		signer = objects
	}
	images := services.NewImageResolver(store, signer, c.SignedURLTTL, c.DisplayCacheDir, logger)

	a.capture = services.NewCaptureService(sealer, store, images, logger)
	a.admin = store
	a.verifier = services.NewVerifier(ledgerRepo, store)
	a.pinger = provider

	return a, nil
}

// Close releases the databases in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) actor() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.actorID
}

func (a *App) mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Mode
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		a.logger.Info(ctx, "sealing availability changed", "mode", mode)
	}
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.pinger.Ping(ctx); err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)
}

// StartOnlineStatusWatcher probes the intermediary every interval until ctx
// is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn(ctx, "close failed", "error", err)
		}
	}()
	a.Root(ctx, bufio.NewScanner(os.Stdin))
}
