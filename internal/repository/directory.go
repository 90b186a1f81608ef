package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/upnpcds/internal/catalog"
	"github.com/mantonx/upnpcds/internal/cds"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
)

// DirectoryRepository mirrors a directory tree below its mount path. Folders
// become storage folders and media files become audio, video or photo items.
type DirectoryRepository struct {
	*ScannerRepository

	logger hclog.Logger
	mime   cds.MimeResolver
}

// NewDirectoryRepository creates a directory repository serving sourceRoot
// at mountPath.
func NewDirectoryRepository(mountPath, sourceRoot string, mime cds.MimeResolver, workers int, logger hclog.Logger) *DirectoryRepository {
	if mime == nil {
		mime = NewMimeResolver()
	}
	d := &DirectoryRepository{
		logger: logger.Named("directory").With("mount_path", mountPath),
		mime:   mime,
	}
	d.ScannerRepository = NewScannerRepository(mountPath, sourceRoot, d, workers, logger)
	return d
}

// Kind implements Handler.
func (d *DirectoryRepository) Kind() string {
	return "directory"
}

// Keep accepts audio, video and image files.
func (d *DirectoryRepository) Keep(entry *Entry) bool {
	mimeType, err := d.mime.MimeType(entry.Path)
	if err != nil {
		return false
	}
	switch MajorType(mimeType) {
	case "audio", "video", "image":
		entry.Mime = mimeType
		return true
	default:
		return false
	}
}

// Ingest creates the folders leading to the file and the file item itself.
func (d *DirectoryRepository) Ingest(ctx context.Context, svc *cds.Service, mount *catalog.Item, entry Entry) ([]*catalog.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parent := mount
	dir := d.SourceRoot()
	relDir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(entry.Rel)))
	for _, segment := range catalog.SplitPath(relDir) {
		dir = filepath.Join(dir, segment)
		folder, err := d.folder(svc, parent, segment, dir)
		if err != nil {
			return nil, err
		}
		parent = folder
	}

	var (
		item *catalog.Item
		err  error
	)
	switch {
	case strings.HasPrefix(entry.Mime, "video/"):
		item, err = svc.NewVideo(parent, "", entry.Path)
	case strings.HasPrefix(entry.Mime, "image/"):
		item, err = svc.NewPhoto(parent, "", entry.Path)
	default:
		item, err = svc.NewAudio(parent, "", entry.Path)
	}
	if err != nil {
		return nil, err
	}
	return []*catalog.Item{item}, nil
}

// folder returns the folder called name under parent, creating it from dir
// when missing. Concurrent ingests may race to create the same folder; the
// loser picks up the winner's node.
func (d *DirectoryRepository) folder(svc *cds.Service, parent *catalog.Item, name, dir string) (*catalog.Item, error) {
	store := svc.Store()
	if existing := store.ChildByName(parent, name); existing != nil {
		return existing, nil
	}

	folder, err := svc.NewFolder(parent, name, dir)
	if errors.Is(err, cdserrors.ErrNameTaken) {
		if existing := store.ChildByName(parent, name); existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}

	d.logger.Debug("folder created", "path", folder.Path(), "dir", dir)
	return folder, nil
}
