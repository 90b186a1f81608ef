// Package cds implements the ContentDirectory engine: Browse over the catalog
// store, the factory operations repositories use to create items, and the
// routing of refresh and update requests to mounted repositories.
package cds

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/upnpcds/internal/catalog"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
	"github.com/mantonx/upnpcds/internal/utils"
)

// ServiceType is the UPnP service type of the ContentDirectory.
const ServiceType = "urn:schemas-upnp-org:service:ContentDirectory:1"

// ServiceID is the UPnP service id of the ContentDirectory.
const ServiceID = "urn:upnp-org:serviceId:ContentDirectory"

const defaultMimeType = "application/octet-stream"

// Service is the ContentDirectory engine.
type Service struct {
	logger hclog.Logger
	store  *catalog.Store
	mime   MimeResolver

	mu           sync.RWMutex
	repositories []Repository
}

// NewService creates the engine around store. mime resolves protocolInfo for
// file items.
func NewService(store *catalog.Store, mime MimeResolver, logger hclog.Logger) *Service {
	return &Service{
		logger: logger.Named("cds"),
		store:  store,
		mime:   mime,
	}
}

// Store returns the catalog the engine serves.
func (s *Service) Store() *catalog.Store {
	return s.store
}

// SystemUpdateID returns the store-wide change counter.
func (s *Service) SystemUpdateID() uint32 {
	return s.store.SystemUpdateID()
}

// SetRepositories registers repos and initializes them one after the other,
// shortest mount path first, so a repository may rely on the containers an
// earlier one created.
func (s *Service) SetRepositories(ctx context.Context, repos []Repository) error {
	ordered := make([]Repository, len(repos))
	copy(ordered, repos)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].MountPath()) < len(ordered[j].MountPath())
	})

	s.mu.Lock()
	s.repositories = ordered
	s.mu.Unlock()

	for _, repo := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		s.logger.Info("initializing repository", "mount_path", repo.MountPath())

		if err := repo.Initialize(ctx, s); err != nil {
			return cdserrors.Upstream("initialize", repo.MountPath(), err)
		}

		s.logger.Info("repository initialized",
			"mount_path", repo.MountPath(),
			"duration", time.Since(start),
			"items", s.store.Len())
	}

	return nil
}

// Repositories returns the registered repositories in initialization order.
func (s *Service) Repositories() []Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Repository, len(s.repositories))
	copy(out, s.repositories)
	return out
}

// AllocateItemsForPath returns the node at path, creating virtual containers
// for any missing segment.
func (s *Service) AllocateItemsForPath(path string) (*catalog.Item, error) {
	return s.store.ResolvePath(utils.CleanCatalogPath(path))
}

// NewItem allocates a child of parent. Containers are inferred from class.
func (s *Service) NewItem(parent *catalog.Item, name string, class catalog.Class, opts ...catalog.ItemOption) (*catalog.Item, error) {
	return s.store.Allocate(parent, name, class, class.IsContainer(), opts...)
}

// NewContainer allocates a plain container under parent.
func (s *Service) NewContainer(parent *catalog.Item, name string, opts ...catalog.ItemOption) (*catalog.Item, error) {
	return s.store.Allocate(parent, name, catalog.ClassContainer, true, opts...)
}

// NewFolder allocates a storage folder materialized from the directory at
// path.
func (s *Service) NewFolder(parent *catalog.Item, name, path string, opts ...catalog.ItemOption) (*catalog.Item, error) {
	st, err := utils.StatFile(path)
	if err != nil {
		return nil, cdserrors.IOFailure("new_folder", path, err)
	}
	if !st.IsDir {
		return nil, cdserrors.IOFailure("new_folder", path, fmt.Errorf("not a directory"))
	}
	if name == "" {
		name = filepath.Base(path)
	}

	base := []catalog.ItemOption{
		catalog.WithBackingPath(path),
		catalog.WithModified(st.ModTime),
	}
	return s.store.Allocate(parent, name, catalog.ClassStorageFolder, true, append(base, opts...)...)
}

// NewFile allocates a leaf for the file at path. An empty name uses the file's
// base name. Size and modification time come from stat and protocolInfo from
// the file's MIME type.
func (s *Service) NewFile(parent *catalog.Item, name, path string, class catalog.Class, opts ...catalog.ItemOption) (*catalog.Item, error) {
	base, err := s.FileAttributes(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(path)
	}
	return s.store.Allocate(parent, name, class, false, append(base, opts...)...)
}

// NewAudio allocates an audio leaf.
func (s *Service) NewAudio(parent *catalog.Item, name, path string, opts ...catalog.ItemOption) (*catalog.Item, error) {
	return s.NewFile(parent, name, path, catalog.ClassAudioFile, opts...)
}

// NewVideo allocates a video leaf.
func (s *Service) NewVideo(parent *catalog.Item, name, path string, opts ...catalog.ItemOption) (*catalog.Item, error) {
	return s.NewFile(parent, name, path, catalog.ClassVideoFile, opts...)
}

// NewPhoto allocates a photo leaf.
func (s *Service) NewPhoto(parent *catalog.Item, name, path string, opts ...catalog.ItemOption) (*catalog.Item, error) {
	return s.NewFile(parent, name, path, catalog.ClassPhotoFile, opts...)
}

// FileAttributes stats path and returns the options describing it as a
// playable leaf.
func (s *Service) FileAttributes(path string) ([]catalog.ItemOption, error) {
	st, err := utils.StatFile(path)
	if err != nil {
		return nil, cdserrors.IOFailure("stat", path, err)
	}
	if st.IsDir {
		return nil, cdserrors.IOFailure("stat", path, fmt.Errorf("is a directory"))
	}

	return []catalog.ItemOption{
		catalog.WithBackingPath(path),
		catalog.WithResource(catalog.Resource{
			ProtocolInfo: ProtocolInfo(s.mimeType(path)),
			Size:         st.Size,
		}),
		catalog.WithModified(st.ModTime),
	}, nil
}

func (s *Service) mimeType(path string) string {
	if s.mime == nil {
		return defaultMimeType
	}
	mimeType, err := s.mime.MimeType(path)
	if err != nil || mimeType == "" {
		s.logger.Debug("mime type unknown, using default", "path", path, "error", err)
		return defaultMimeType
	}
	return mimeType
}

// ProtocolInfo builds the http-get protocolInfo for a MIME type.
func ProtocolInfo(mimeType string) string {
	return "http-get:*:" + mimeType + ":*"
}
