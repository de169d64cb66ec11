package gallery

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"gallery-go/internal/model"
)

// Options configures a Store. Zero values select production defaults.
type Options struct {
	// Extension is appended to blob ids to form vault names. Defaults to DefaultExtension.
	Extension string
	Logger    Logger
	Clock     Clock
	IDGen     IDGenerator
	Metrics   Metrics
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = NewNopLogger()
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	if o.IDGen == nil {
		o.IDGen = UUIDGenerator{}
	}
	if o.Metrics == nil {
		o.Metrics = NopMetrics{}
	}
	return o
}

// StartupReport lists the non-fatal problems found while opening a store.
type StartupReport struct {
	// Degraded is true if the index document could not be read or parsed and the
	// store started from an empty index.
	Degraded      bool
	DegradedCause error
	// Unreadable is true if the slot failed to return the document at all.
	// The document is then left in place until the first mutation saves over it.
	Unreadable bool

	DuplicatesDropped int
	Reconcile         ReconcileReport
}

// Warnings renders the report as user-facing messages, one per problem.
func (r StartupReport) Warnings() []string {
	var out []string
	switch {
	case r.Unreadable:
		out = append(out, fmt.Sprintf("gallery index could not be read, it is kept until the next change: %v", r.DegradedCause))
	case r.Degraded:
		out = append(out, fmt.Sprintf("gallery index could not be loaded, starting empty: %v", r.DegradedCause))
	}
	if r.DuplicatesDropped > 0 {
		out = append(out, fmt.Sprintf("%d duplicate entries dropped from the gallery index", r.DuplicatesDropped))
	}
	if n := len(r.Reconcile.Dropped); n > 0 {
		out = append(out, fmt.Sprintf("%d photos removed from the gallery because their files are missing", n))
	}
	if n := len(r.Reconcile.Adopted); n > 0 {
		out = append(out, fmt.Sprintf("%d photos recovered from storage", n))
	}
	if n := len(r.Reconcile.OrphansFailed); n > 0 {
		out = append(out, fmt.Sprintf("%d unreferenced files could not be removed", n))
	}
	return out
}

// Store is the gallery: it owns an Index and the blobs it references and keeps
// the two consistent. Capture, Delete and Reconcile are serialized; List, Detail
// and Export run concurrently and only ever observe committed indexes.
type Store struct {
	blobs      *BlobStore
	slot       IndexSlot
	reconciler *Reconciler
	logger     Logger
	clock      Clock
	metrics    Metrics

	// sem admits one mutation at a time. Acquire honours the caller's context.
	sem *semaphore.Weighted

	mu    sync.RWMutex
	index *Index

	closed atomic.Bool
}

// Open loads the index from slot, reconciles it against vault and returns a
// store ready for use. A missing or unreadable index is not fatal: the store
// starts empty and the report is marked Degraded. If the slot could not be read
// at all, the recovered index is kept in memory and nothing is saved, so the
// stored document survives until the next mutation. Open fails only when the
// vault cannot be scanned or the reconciled index cannot be saved.
func Open(ctx context.Context, vault Vault, slot IndexSlot, opts Options) (*Store, StartupReport, error) {
	opts = opts.withDefaults()
	blobs := NewBlobStore(vault, opts.IDGen, opts.Extension, opts.Logger)
	s := &Store{
		blobs:      blobs,
		slot:       slot,
		reconciler: NewReconciler(blobs, opts.Logger, opts.Metrics),
		logger:     opts.Logger,
		clock:      opts.Clock,
		metrics:    opts.Metrics,
		sem:        semaphore.NewWeighted(1),
	}

	var report StartupReport
	index, rewrite, adopt := s.load(ctx, &report)

	p, err := s.reconciler.plan(ctx, index, adopt)
	if err != nil {
		return nil, report, fmt.Errorf("opening gallery: scanning blobs: %v", err)
	}
	rewrite = rewrite || len(p.report.Dropped) > 0 || len(p.report.Adopted) > 0
	if rewrite && !report.Unreadable {
		if err := s.persist(ctx, p.next); err != nil {
			return nil, report, translate(ErrPersistFailed, "opening gallery", err)
		}
	}
	s.index = p.next
	s.reconciler.removeOrphans(ctx, p)
	report.Reconcile = p.report

	for _, rec := range p.report.Dropped {
		s.logger.Warn("index entry dropped, blob missing", "id", rec.ID)
	}
	if n := len(p.report.Adopted); n > 0 {
		s.logger.Warn("blobs adopted into empty index", "count", n)
	}
	s.metrics.ReconcileDropped(len(p.report.Dropped))
	s.metrics.Records(s.index.Len())
	s.logger.Info("gallery opened", "records", s.index.Len(), "degraded", report.Degraded)
	return s, report, nil
}

// load reads and parses the index document. rewrite is true if the document
// should be saved again in canonical form; adopt is true if no valid document
// was found, in which case unreferenced blobs are recovered instead of deleted.
func (s *Store) load(ctx context.Context, report *StartupReport) (index *Index, rewrite, adopt bool) {
	doc, err := s.slot.Load(ctx)
	if err != nil {
		s.logger.Error("reading gallery index failed, starting empty", "error", err)
		report.Degraded = true
		report.Unreadable = true
		report.DegradedCause = err
		return NewIndex(), false, true
	}
	if doc == nil {
		return NewIndex(), false, true
	}

	index, lr, err := LoadIndex(doc)
	if err != nil {
		s.logger.Error("gallery index is corrupt, starting empty", "error", err)
		report.Degraded = true
		report.DegradedCause = err
		return index, false, true
	}
	report.DuplicatesDropped = lr.DuplicatesDropped
	if lr.DuplicatesDropped > 0 {
		s.logger.Warn("duplicate index entries dropped", "count", lr.DuplicatesDropped)
	}
	if lr.Legacy {
		s.logger.Info("upgrading legacy gallery index")
	}
	return index, lr.Legacy || lr.DuplicatesDropped > 0, false
}

// lock enters the mutation section. Waiting can be abandoned through ctx; once
// entered, the caller must run to completion and call unlock.
func (s *Store) lock(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for gallery: %w", err)
	}
	if s.closed.Load() {
		s.sem.Release(1)
		return ErrClosed
	}
	return nil
}

func (s *Store) unlock() {
	s.sem.Release(1)
}

// current returns the committed index. Callers must either hold the mutation
// section or treat the result as read-only under s.mu.
func (s *Store) current() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

func (s *Store) persist(ctx context.Context, next *Index) error {
	doc, err := next.Serialize()
	if err != nil {
		return err
	}
	return s.slot.Save(ctx, doc)
}

func (s *Store) commit(next *Index) {
	s.mu.Lock()
	s.index = next
	s.mu.Unlock()
	s.metrics.Records(next.Len())
}

// Capture stores the bytes of r as a new photo and returns its record. On any
// failure the gallery is left exactly as it was; the error matches
// ErrCaptureFailed or ErrPersistFailed.
func (s *Store) Capture(ctx context.Context, r io.Reader) (model.MediaRecord, error) {
	if err := s.lock(ctx); err != nil {
		return model.MediaRecord{}, err
	}
	defer s.unlock()

	rec, result, err := s.capture(context.WithoutCancel(ctx), r)
	s.metrics.CaptureResult(result)
	return rec, err
}

func (s *Store) capture(ctx context.Context, r io.Reader) (model.MediaRecord, string, error) {
	index := s.current()

	id, err := s.blobs.Allocate(ctx, index.Has)
	if err != nil {
		s.logger.Error("capture failed", "stage", "allocate", "error", err)
		return model.MediaRecord{}, ResultCaptureFailed, translate(ErrCaptureFailed, "capture", err)
	}

	size, err := s.blobs.Write(ctx, id, r)
	if err != nil {
		s.logger.Error("capture failed", "stage", "write", "id", id, "error", err)
		return model.MediaRecord{}, ResultCaptureFailed, translate(ErrCaptureFailed, "capture", err)
	}

	next := index.Clone()
	if err := next.Append(model.MediaRecord{ID: id, CapturedAt: s.clock.Now()}); err != nil {
		s.rollbackCapture(ctx, id)
		return model.MediaRecord{}, ResultCaptureFailed, translate(ErrCaptureFailed, "capture", err)
	}
	rec, _ := next.Get(id)

	if err := s.persist(ctx, next); err != nil {
		s.logger.Error("saving index after capture failed, rolling back", "id", id, "error", err)
		s.rollbackCapture(ctx, id)
		return model.MediaRecord{}, ResultPersistFailed, translate(ErrPersistFailed, "capture", err)
	}
	s.commit(next)

	s.logger.Info("photo captured", "id", id, "size", size)
	return rec, ResultSuccess, nil
}

// rollbackCapture removes a blob that never made it into the index. A failure
// leaves an orphan for the next reconcile.
func (s *Store) rollbackCapture(ctx context.Context, id string) {
	if err := s.blobs.Delete(ctx, id); err != nil {
		s.logger.Error("capture rollback failed, orphan left for reconcile", "id", id, "error", err)
		s.metrics.Rollback("capture", false)
		return
	}
	s.metrics.Rollback("capture", true)
}

// CaptureFrom asks device for a new image and captures it. A device failure is
// reported as ErrCaptureFailed and changes nothing.
func (s *Store) CaptureFrom(ctx context.Context, device CaptureDevice) (model.MediaRecord, error) {
	if s.closed.Load() {
		return model.MediaRecord{}, ErrClosed
	}
	rc, err := device.Capture(ctx)
	if err != nil {
		s.logger.Error("capture device failed", "error", err)
		s.metrics.CaptureResult(ResultCaptureFailed)
		return model.MediaRecord{}, translate(ErrCaptureFailed, "capture", err)
	}
	defer rc.Close()
	return s.Capture(ctx, rc)
}

// List returns a snapshot of the gallery in display order, oldest first.
func (s *Store) List() []model.MediaRecord {
	return s.current().List()
}

// Len returns the number of photos in the gallery.
func (s *Store) Len() int {
	return s.current().Len()
}

// Detail joins the record for id with the metadata of its blob. The error
// matches ErrNotFound if either is missing.
func (s *Store) Detail(ctx context.Context, id string) (model.Detail, error) {
	if s.closed.Load() {
		return model.Detail{}, ErrClosed
	}
	rec, ok := s.current().Get(id)
	if !ok {
		return model.Detail{}, translate(ErrNotFound, "detail "+id, nil)
	}
	info, err := s.blobs.Metadata(ctx, id)
	if err != nil {
		return model.Detail{}, translate(ErrNotFound, "detail "+id, err)
	}
	return model.Detail{
		Record:     rec,
		BlobName:   s.blobs.Name(id),
		SizeBytes:  info.SizeBytes,
		ModifiedAt: info.ModifiedAt,
	}, nil
}

// Export opens the blob for id for reading. The blob stays available until the
// handle is closed, even if the photo is deleted meanwhile.
func (s *Store) Export(ctx context.Context, id string) (*Handle, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	// Holding the read lock keeps a concurrent Delete from committing between
	// the index lookup and the pin.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.index.Has(id) {
		return nil, translate(ErrNotFound, "export "+id, nil)
	}
	h, err := s.blobs.ReadHandleFor(ctx, id)
	if err != nil {
		return nil, translate(ErrNotFound, "export "+id, err)
	}
	return h, nil
}

// Share streams the blob for id to sink. It fails with ErrExportUnavailable if
// the sink is not available or rejects the content.
func (s *Store) Share(ctx context.Context, id string, sink ExportSink) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !sink.Available(ctx) {
		return translate(ErrExportUnavailable, "share "+id, nil)
	}
	h, err := s.Export(ctx, id)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := sink.Export(ctx, h.Name, h); err != nil {
		return translate(ErrExportUnavailable, "share "+id, err)
	}
	s.logger.Info("photo shared", "id", id)
	return nil
}

// Delete removes the photo with the given id. The index change is durable
// before the blob is touched; if the blob then cannot be deleted it is left as
// an orphan and Delete still succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	result, err := s.delete(context.WithoutCancel(ctx), id)
	s.metrics.DeleteResult(result)
	return err
}

func (s *Store) delete(ctx context.Context, id string) (string, error) {
	next := s.current().Clone()
	if _, err := next.Remove(id); err != nil {
		return ResultNotFound, translate(ErrNotFound, "delete "+id, err)
	}

	// The committed index is only replaced after a successful save, so a failure
	// here leaves the record in place along with its blob.
	if err := s.persist(ctx, next); err != nil {
		s.logger.Error("saving index after delete failed, photo kept", "id", id, "error", err)
		return ResultPersistFailed, translate(ErrPersistFailed, "delete "+id, err)
	}
	s.commit(next)

	if err := s.blobs.Delete(ctx, id); err != nil {
		s.logger.Warn("blob delete failed, orphan left for reconcile", "id", id, "error", err)
	}
	s.logger.Info("photo deleted", "id", id)
	return ResultSuccess, nil
}

// Reconcile repairs divergence between the index and the vault: records whose
// blob is missing are dropped and unreferenced blobs are deleted. Blobs held by
// open export handles are left alone. Running it twice in a row changes nothing
// the second time.
func (s *Store) Reconcile(ctx context.Context) (ReconcileReport, error) {
	if err := s.lock(ctx); err != nil {
		return ReconcileReport{}, err
	}
	defer s.unlock()
	ctx = context.WithoutCancel(ctx)

	p, err := s.reconciler.plan(ctx, s.current(), false)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("reconcile: scanning blobs: %v", err)
	}
	if len(p.report.Dropped) > 0 {
		if err := s.persist(ctx, p.next); err != nil {
			return ReconcileReport{}, translate(ErrPersistFailed, "reconcile", err)
		}
		s.commit(p.next)
		for _, rec := range p.report.Dropped {
			s.logger.Warn("index entry dropped, blob missing", "id", rec.ID)
		}
		s.metrics.ReconcileDropped(len(p.report.Dropped))
	}
	s.reconciler.removeOrphans(ctx, p)
	return p.report, nil
}

// Close waits for an in-flight mutation to finish. Afterwards every operation
// except List and Len fails with ErrClosed. Open export handles stay valid.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	s.sem.Release(1)
	s.logger.Debug("gallery closed")
	return nil
}
