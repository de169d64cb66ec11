package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gallery-go/internal/config"
	"gallery-go/internal/encryption"
	"gallery-go/internal/fs"
	"gallery-go/internal/gallery"
	"gallery-go/internal/metrics"
	"gallery-go/internal/model"
	"gallery-go/internal/slot"
	"gallery-go/internal/vault"
)

// GalleryApp is the application layer between the CLI and the gallery store.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw paths, and releases everything on Close.
type GalleryApp struct {
	cfg     *config.Config
	store   *gallery.Store
	slot    slot.Slot
	metrics *metrics.Collector
	logger  gallery.Logger
	logFile *os.File
	report  gallery.StartupReport
}

// NewGalleryApp creates a fully wired GalleryApp from the given config.
// operation names the CLI command being run and tags every log line.
// passphrase is consulted only if the index is sealed with age.
// The caller must call Close when done.
func NewGalleryApp(ctx context.Context, cfg *config.Config, operation string, passphrase func() (string, error)) (*GalleryApp, error) {
	opID := operation + "-" + time.Now().UTC().Format("20060102T150405Z")
	sl, logFile, err := newLogger(cfg.LogDir, opID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	a, err := wire(ctx, cfg, logger, passphrase)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

func wire(ctx context.Context, cfg *config.Config, logger gallery.Logger, passphrase func() (string, error)) (*GalleryApp, error) {
	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("vault %s: %w", cfg.Vault.Name, err)
	}

	sealer, err := encryption.NewSealerFromConfig(cfg.Encryption, passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	s, err := slot.NewSlotFromConfig(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("creating index slot: %w", err)
	}
	var indexSlot gallery.IndexSlot = s
	if sealer != nil {
		indexSlot = encryption.NewSealedSlot(s, sealer)
	}

	collector := metrics.NewCollector()
	store, report, err := gallery.Open(ctx, v, indexSlot, gallery.Options{
		Extension: cfg.Vault.Extension,
		Logger:    logger,
		Metrics:   collector,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	return &GalleryApp{
		cfg:     cfg,
		store:   store,
		slot:    s,
		metrics: collector,
		logger:  logger,
		report:  report,
	}, nil
}

// Warnings returns the problems found while opening the gallery.
func (a *GalleryApp) Warnings() []string {
	return a.report.Warnings()
}

// List returns every photo, oldest first.
func (a *GalleryApp) List() []model.MediaRecord {
	return a.store.List()
}

// Detail returns the record and blob metadata of one photo.
func (a *GalleryApp) Detail(ctx context.Context, id string) (model.Detail, error) {
	return a.store.Detail(ctx, id)
}

// ImportOptions controls how Import walks a path.
type ImportOptions struct {
	Recursive bool
	// Ignore holds extra ignore patterns on top of the directory's ignore file.
	Ignore []string
	// Move deletes each source file once the gallery holds its copy.
	Move bool
}

// Import captures the photo at rawPath, or every image under it if it is a
// directory. It stops at the first failure and returns what was captured so far.
func (a *GalleryApp) Import(ctx context.Context, rawPath string, opts ImportOptions) ([]model.MediaRecord, error) {
	abs, info, err := fs.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	paths := []string{abs}
	if info.IsDir() {
		ignore, err := fs.LoadIgnoreMatcher(abs, opts.Ignore)
		if err != nil {
			return nil, err
		}
		if paths, err = fs.FindImages(abs, opts.Recursive, ignore); err != nil {
			return nil, err
		}
	}

	var captured []model.MediaRecord
	for _, p := range paths {
		rec, err := a.capture(ctx, p, opts.Move)
		if err != nil {
			return captured, fmt.Errorf("importing %s: %w", p, err)
		}
		captured = append(captured, rec)
	}
	return captured, nil
}

func (a *GalleryApp) capture(ctx context.Context, path string, move bool) (model.MediaRecord, error) {
	device, err := fs.NewFileCapture(path)
	if err != nil {
		return model.MediaRecord{}, err
	}
	rec, err := a.store.CaptureFrom(ctx, device)
	if err != nil {
		return model.MediaRecord{}, err
	}
	if move {
		if err := device.Remove(); err != nil {
			a.logger.Warn("captured photo but could not remove source", "id", rec.ID, "path", path, "error", err)
		}
	}
	return rec, nil
}

// Export delivers the photo into dir, or to stdout when dir is "-".
func (a *GalleryApp) Export(ctx context.Context, id, dir string, stdout io.Writer) error {
	var sink gallery.ExportSink = fs.NewDirExport(dir)
	if dir == "-" {
		sink = fs.NewWriterExport(stdout)
	}
	return a.store.Share(ctx, id, sink)
}

// Delete removes one photo.
func (a *GalleryApp) Delete(ctx context.Context, id string) error {
	return a.store.Delete(ctx, id)
}

// Reconcile repairs differences between the index and the vault.
func (a *GalleryApp) Reconcile(ctx context.Context) (gallery.ReconcileReport, error) {
	return a.store.Reconcile(ctx)
}

// Close shuts the store down, releases the index slot, and writes the
// metrics textfile if one is configured.
func (a *GalleryApp) Close() error {
	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing gallery: %w", err))
	}
	if err := a.slot.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing index slot: %w", err))
	}
	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}
