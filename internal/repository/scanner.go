// Package repository provides the content sources mounted into the catalog:
// a generic file tree scanner and the music and directory repositories built
// on it.
package repository

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/mantonx/upnpcds/internal/catalog"
	"github.com/mantonx/upnpcds/internal/cds"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
	"github.com/mantonx/upnpcds/internal/utils"
)

// Entry is a file found by the scanner.
type Entry struct {
	Path    string
	Rel     string // slash separated, relative to the source root
	Size    int64
	ModTime time.Time
	Mime    string
}

// Handler is the source specific part of a scanner repository.
type Handler interface {
	// Kind names the repository kind in logs and metrics.
	Kind() string

	// Keep reports whether entry should be ingested. It may fill in
	// entry.Mime.
	Keep(entry *Entry) bool

	// Ingest adds entry below mount and returns the items it created.
	Ingest(ctx context.Context, svc *cds.Service, mount *catalog.Item, entry Entry) ([]*catalog.Item, error)
}

// ScannerRepository walks a source directory and hands every kept file to
// its Handler. A file that fails to ingest is logged and skipped.
type ScannerRepository struct {
	logger     hclog.Logger
	mountPath  string
	sourceRoot string
	handler    Handler
	workers    int

	svc   *cds.Service
	mount *catalog.Item

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewScannerRepository creates a repository serving sourceRoot at mountPath.
func NewScannerRepository(mountPath, sourceRoot string, handler Handler, workers int, logger hclog.Logger) *ScannerRepository {
	if workers < 1 {
		workers = 1
	}
	return &ScannerRepository{
		logger:     logger.Named(handler.Kind()).With("mount_path", mountPath),
		mountPath:  utils.CleanCatalogPath(mountPath),
		sourceRoot: filepath.Clean(sourceRoot),
		handler:    handler,
		workers:    workers,
		seen:       make(map[string]struct{}),
	}
}

// MountPath implements cds.Repository.
func (s *ScannerRepository) MountPath() string {
	return s.mountPath
}

// SourceRoot returns the scanned directory.
func (s *ScannerRepository) SourceRoot() string {
	return s.sourceRoot
}

// MountItem returns the mount node once the repository is initialized.
func (s *ScannerRepository) MountItem() *catalog.Item {
	return s.mount
}

// Initialize resolves the mount node and performs the first full scan.
func (s *ScannerRepository) Initialize(ctx context.Context, svc *cds.Service) error {
	mount, err := svc.AllocateItemsForPath(s.mountPath)
	if err != nil {
		return err
	}
	if !mount.IsContainer() {
		return cdserrors.NotFound("initialize", cdserrors.ErrNotContainer).WithPath(s.mountPath)
	}

	s.svc = svc
	s.mount = mount

	start := time.Now()
	items, err := s.scan(ctx, s.sourceRoot)
	if err != nil {
		return err
	}

	s.logger.Info("initial scan complete", "source", s.sourceRoot, "items", len(items), "duration", time.Since(start))
	return nil
}

// Browse rescans the directory behind item, or the whole source when item
// has no backing directory, and returns the items created by new files.
// Directories outside the source root belong to another repository and are
// left alone.
func (s *ScannerRepository) Browse(ctx context.Context, item *catalog.Item) ([]*catalog.Item, error) {
	if s.mount == nil || !item.IsContainer() {
		return nil, nil
	}

	root := s.sourceRoot
	if bp := item.BackingPath(); bp != "" {
		if !s.owns(bp) {
			return nil, nil
		}
		root = bp
	}
	return s.scan(ctx, root)
}

// Update refreshes a leaf's size and modification time from its file, or
// rescans below a container.
func (s *ScannerRepository) Update(ctx context.Context, item *catalog.Item) error {
	if s.mount == nil {
		return nil
	}

	if item.IsContainer() {
		_, err := s.Browse(ctx, item)
		return err
	}

	path := item.BackingPath()
	if path == "" || !s.owns(path) {
		return nil
	}

	attrs, err := s.svc.FileAttributes(path)
	if err != nil {
		return err
	}
	s.svc.Store().Update(item, attrs...)

	s.logger.Debug("item updated", "id", item.ID(), "path", path)
	return nil
}

// owns reports whether path lies at or below the source root.
func (s *ScannerRepository) owns(path string) bool {
	rel, err := filepath.Rel(s.sourceRoot, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// scan walks root and ingests files not seen before. Results are returned in
// walk order.
func (s *ScannerRepository) scan(ctx context.Context, root string) ([]*catalog.Item, error) {
	entries, err := s.collect(ctx, root)
	if err != nil {
		return nil, err
	}

	results := make([][]*catalog.Item, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			items, err := s.handler.Ingest(gctx, s.svc, s.mount, entry)
			if err != nil {
				s.logger.Warn("skipping file, ingestion failed", "path", entry.Path, "error", err)
				cds.IngestErrors.WithLabelValues(s.handler.Kind()).Inc()
				return nil
			}

			s.mu.Lock()
			s.seen[entry.Path] = struct{}{}
			s.mu.Unlock()

			cds.IngestedFiles.WithLabelValues(s.handler.Kind()).Inc()
			results[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var created []*catalog.Item
	for _, items := range results {
		created = append(created, items...)
	}
	return created, nil
}

// collect walks root and returns the kept entries that have not been
// ingested yet.
func (s *ScannerRepository) collect(ctx context.Context, root string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != root && utils.IsHidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || utils.IsHidden(path) || utils.IsSkippedFile(path) {
			return nil
		}

		s.mu.Lock()
		_, done := s.seen[path]
		s.mu.Unlock()
		if done {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Warn("skipping file, stat failed", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(s.sourceRoot, path)
		if err != nil {
			rel = filepath.Base(path)
		}

		entry := Entry{
			Path:    path,
			Rel:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if s.handler.Keep(&entry) {
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cdserrors.IOFailure("scan", root, err)
	}

	return entries, nil
}
