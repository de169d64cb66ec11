package gallery

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"gallery-go/internal/model"
)

const defaultReconcileConcurrency = 8

// ReconcileReport describes the repairs made by one reconciliation pass.
type ReconcileReport struct {
	// Dropped are index records whose blob was missing.
	Dropped []model.MediaRecord
	// Adopted are records created for unreferenced blobs when no index document
	// could be loaded.
	Adopted []model.MediaRecord
	// OrphansRemoved are ids of unreferenced blobs that were deleted.
	OrphansRemoved []string
	// OrphansFailed are ids of unreferenced blobs that could not be deleted.
	OrphansFailed []string
}

// Changed reports whether the pass repaired anything.
func (r ReconcileReport) Changed() bool {
	return len(r.Dropped) > 0 || len(r.Adopted) > 0 || len(r.OrphansRemoved) > 0
}

// Reconciler compares an index with the blobs in the vault and repairs the
// difference: broken references are dropped from the index, unreferenced blobs
// are deleted (or adopted into the index when the index was lost).
type Reconciler struct {
	blobs       *BlobStore
	logger      Logger
	metrics     Metrics
	concurrency int
}

// NewReconciler creates a Reconciler over blobs.
func NewReconciler(blobs *BlobStore, logger Logger, metrics Metrics) *Reconciler {
	return &Reconciler{
		blobs:       blobs,
		logger:      logger,
		metrics:     metrics,
		concurrency: defaultReconcileConcurrency,
	}
}

// reconcilePlan is the outcome of comparing an index with the vault.
type reconcilePlan struct {
	next    *Index
	report  ReconcileReport
	orphans []string
}

// plan computes the corrected index without touching the vault. If adopt is true,
// unreferenced blobs are appended to the index (ordered by modification time)
// instead of being scheduled for deletion.
func (r *Reconciler) plan(ctx context.Context, current *Index, adopt bool) (*reconcilePlan, error) {
	ids, err := r.blobs.IDs(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}

	p := &reconcilePlan{next: current.Clone()}
	for _, rec := range current.List() {
		if _, ok := present[rec.ID]; ok {
			continue
		}
		if _, err := p.next.Remove(rec.ID); err != nil {
			return nil, err
		}
		p.report.Dropped = append(p.report.Dropped, rec)
	}

	var orphans []string
	for _, id := range ids {
		if !p.next.Has(id) && !r.blobs.Pinned(id) {
			orphans = append(orphans, id)
		}
	}

	if !adopt {
		p.orphans = orphans
		return p, nil
	}

	adopted, err := r.adopt(ctx, orphans)
	if err != nil {
		return nil, err
	}
	for _, rec := range adopted {
		if err := p.next.Append(rec); err != nil {
			return nil, err
		}
	}
	p.report.Adopted = p.next.List()[p.next.Len()-len(adopted):]
	return p, nil
}

// adopt builds records for orphan blobs, using each blob's modification time as
// its capture time.
func (r *Reconciler) adopt(ctx context.Context, orphans []string) ([]model.MediaRecord, error) {
	records := make([]model.MediaRecord, len(orphans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range orphans {
		g.Go(func() error {
			info, err := r.blobs.Metadata(gctx, id)
			if err != nil {
				return fmt.Errorf("adopting blob %s: %w", id, err)
			}
			records[i] = model.MediaRecord{ID: id, CapturedAt: info.ModifiedAt}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CapturedAt.Equal(records[j].CapturedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CapturedAt.Before(records[j].CapturedAt)
	})
	return records, nil
}

// removeOrphans deletes the orphan blobs found by plan. Individual failures are
// collected in the report and never abort the pass.
func (r *Reconciler) removeOrphans(ctx context.Context, p *reconcilePlan) {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, id := range p.orphans {
		g.Go(func() error {
			err := r.blobs.Delete(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("orphan blob delete failed", "id", id, "error", err)
				p.report.OrphansFailed = append(p.report.OrphansFailed, id)
				return nil
			}
			r.logger.Info("orphan blob removed", "id", id)
			p.report.OrphansRemoved = append(p.report.OrphansRemoved, id)
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(p.report.OrphansRemoved)
	slices.Sort(p.report.OrphansFailed)
	if n := len(p.report.OrphansRemoved); n > 0 {
		r.metrics.ReconcileOrphans(ResultSuccess, n)
	}
	if n := len(p.report.OrphansFailed); n > 0 {
		r.metrics.ReconcileOrphans(ResultFailed, n)
	}
}
