package cds

import (
	"context"

	"github.com/mantonx/upnpcds/internal/catalog"
)

// Repository is a content source mounted at a catalog path.
type Repository interface {
	// MountPath is the catalog path prefix the repository serves.
	MountPath() string

	// Initialize creates the mount node and populates the tree below it.
	// Repositories are initialized one at a time, shortest mount path first.
	Initialize(ctx context.Context, svc *Service) error

	// Browse refreshes the content under item and returns the items the
	// refresh created. An empty result is valid.
	Browse(ctx context.Context, item *catalog.Item) ([]*catalog.Item, error)

	// Update refreshes the attributes of item from its source.
	Update(ctx context.Context, item *catalog.Item) error
}

// MimeResolver maps a file to its MIME type.
type MimeResolver interface {
	MimeType(path string) (string, error)
}
