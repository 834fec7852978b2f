package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/truecam/internal/client/models"
	"github.com/dmitrijs2005/truecam/internal/client/services"
	"github.com/dmitrijs2005/truecam/internal/common"
	"github.com/prometheus/common/expfmt"
)

// metricPrefix selects the pipeline's own series out of the gatherer.
const metricPrefix = "truecam_"

var errUsage = errors.New("usage")

func (a *App) usage(text string) error {
	fmt.Fprintln(a.out, "Usage:", text)
	return errUsage
}

// Capture seals and saves a file. The record is saved even when sealing or
// replication failed; only a local storage failure is reported as an error.
func (a *App) Capture(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return a.usage("capture <file> [lat lon [accuracy]]")
	}
	loc, err := parseLocation(args[1:])
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	path := args[0]
	data, contentType, err := readCapture(path)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	rec, err := a.capture.SealAndPersist(ctx, services.CaptureRequest{
		Payload:     data,
		ContentType: contentType,
		SourcePath:  abs,
		Location:    loc,
		ActorID:     a.actor(),
	})
	if err != nil {
		fmt.Fprintln(a.out, "capture NOT saved:", err)
		return err
	}

	fmt.Fprintf(a.out, "saved %s status=%s synced=%t hash=%s\n", rec.EvidenceID, rec.Status, rec.Synced, rec.Hash)
	if rec.Metadata.Seal.Reason != "" {
		fmt.Fprintln(a.out, "  sealing:", rec.Metadata.Seal.Reason)
	}
	if rec.Metadata.Seal.CloseError != "" {
		fmt.Fprintln(a.out, "  close:", rec.Metadata.Seal.CloseError)
	}
	if rec.Metadata.Sync.Error != "" {
		fmt.Fprintln(a.out, "  sync:", rec.Metadata.Sync.Error)
	}
	return nil
}

func (a *App) List(ctx context.Context) error {
	history, err := a.capture.ListHistory(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(a.out, "no evidence yet")
		return nil
	}
	for _, rec := range history {
		fmt.Fprintln(a.out, summary(rec))
	}
	return nil
}

func summary(rec models.EvidenceRecord) string {
	sync := "local"
	if rec.Synced {
		sync = "synced"
	}
	hash := rec.Hash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return fmt.Sprintf("%s  %s  %-7s %-6s %s", rec.EvidenceID, rec.CreatedAt.Local().Format(time.DateTime), rec.Status, sync, hash)
}

func (a *App) record(ctx context.Context, args []string, usage string) (*models.EvidenceRecord, error) {
	if len(args) != 1 {
		return nil, a.usage(usage)
	}
	rec, err := a.capture.GetDetail(ctx, args[0])
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return nil, err
	}
	if rec == nil {
		fmt.Fprintln(a.out, "not found:", args[0])
		return nil, fmt.Errorf("evidence %s: %w", args[0], common.ErrNotFound)
	}
	return rec, nil
}

// Show prints one record, audit trail included.
func (a *App) Show(ctx context.Context, args []string) error {
	rec, err := a.record(ctx, args, "show <id>")
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(b))
	return nil
}

func (a *App) Image(ctx context.Context, args []string) error {
	rec, err := a.record(ctx, args, "image <id>")
	if err != nil {
		return err
	}
	img, err := a.capture.ResolveDisplayImage(ctx, rec)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
	}
	if !img.Available() {
		fmt.Fprintln(a.out, "image unavailable")
		return err
	}
	fmt.Fprintf(a.out, "%s %s\n", img.Source, img.URL)
	return nil
}

// Verify fingerprints a file and reports where it was found.
func (a *App) Verify(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return a.usage("verify <file>")
	}
	res, err := a.verifier.VerifyFile(ctx, args[0])
	if err != nil && res == nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	if err != nil {
		fmt.Fprintln(a.out, "ledger unavailable:", err)
	}

	fmt.Fprintln(a.out, "hash:", res.Hash)
	if !res.Found() {
		fmt.Fprintln(a.out, "NOT FOUND")
		return err
	}
	if m := res.Ledger; m != nil {
		line := fmt.Sprintf("ledger: %s recorded %s", m.EvidenceID, m.VerifiedAt.Local().Format(time.DateTime))
		if m.Latitude != nil && m.Longitude != nil {
			line += fmt.Sprintf(" at %.5f,%.5f", *m.Latitude, *m.Longitude)
		}
		fmt.Fprintln(a.out, line)
	}
	if rec := res.Local; rec != nil {
		fmt.Fprintf(a.out, "local: %s status=%s\n", rec.EvidenceID, rec.Status)
	}
	return err
}

// Actor shows the replication actor, sets it, or clears it with "-".
func (a *App) Actor(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		if id := a.actor(); id != "" {
			fmt.Fprintln(a.out, "actor:", id)
		} else {
			fmt.Fprintln(a.out, "no actor, captures stay local")
		}
		return nil
	case 1:
		a.mu.Lock()
		if args[0] == "-" {
			a.actorID = ""
		} else {
			a.actorID = args[0]
		}
		a.mu.Unlock()
		a.logger.Info(ctx, "actor changed", "actor_id", a.actor())
		return a.Actor(ctx, nil)
	default:
		return a.usage("actor [id|-]")
	}
}

func (a *App) Orphans(ctx context.Context) error {
	orphans, err := a.admin.OrphanedBlobs(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	if len(orphans) == 0 {
		fmt.Fprintln(a.out, "no orphaned remote blobs")
		return nil
	}
	ids := make([]string, 0, len(orphans))
	for id := range orphans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(a.out, "%s  %s\n", id, orphans[id])
	}
	return nil
}

// Clear drops the local history and blobs. It needs -y.
func (a *App) Clear(ctx context.Context, args []string) error {
	if len(args) != 1 || args[0] != "-y" {
		return a.usage("clear -y   (removes every local record and blob)")
	}
	if err := a.admin.Clear(ctx); err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	fmt.Fprintln(a.out, "local evidence cleared")
	return nil
}

// Metrics prints the pipeline counters (seal outcomes, step failures, sync
// results, signed URL cache) in the Prometheus text format.
func (a *App) Metrics(context.Context) error {
	if a.gatherer == nil {
		fmt.Fprintln(a.out, "metrics unavailable")
		return nil
	}
	families, err := a.gatherer.Gather()
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	n := 0
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), metricPrefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(a.out, mf); err != nil {
			return err
		}
		n++
	}
	if n == 0 {
		fmt.Fprintln(a.out, "no metrics recorded yet")
	}
	return nil
}
