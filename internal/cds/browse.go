package cds

import (
	"context"
	"sort"
	"time"

	"github.com/mantonx/upnpcds/internal/catalog"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
)

// Browse flags.
const (
	BrowseMetadata       = "BrowseMetadata"
	BrowseDirectChildren = "BrowseDirectChildren"
)

// BrowseRequest carries the arguments of a Browse action. StartingIndex and
// RequestedCount use -1 for "absent".
type BrowseRequest struct {
	ObjectID       catalog.ID
	BrowseFlag     string
	Filter         string
	StartingIndex  int
	RequestedCount int
	SortCriteria   string

	// ContentURL prefixes resource URLs, e.g. "http://10.0.0.2:10293/content".
	ContentURL string
}

// SearchRequest carries the arguments of a Search action.
type SearchRequest struct {
	ContainerID    catalog.ID
	SearchCriteria string
	Filter         string
	StartingIndex  int
	RequestedCount int
	SortCriteria   string
	ContentURL     string
}

// BrowseResult is the response of Browse and Search. Result holds the
// DIDL-Lite document.
type BrowseResult struct {
	Result         string
	NumberReturned int
	TotalMatches   int
	UpdateID       uint32
}

// Browse answers a Browse action from the catalog.
func (s *Service) Browse(ctx context.Context, req BrowseRequest) (*BrowseResult, error) {
	start := time.Now()
	flagLabel := req.BrowseFlag
	if flagLabel != BrowseMetadata && flagLabel != BrowseDirectChildren {
		flagLabel = "invalid"
	}

	s.logger.Debug("browse request",
		"object_id", req.ObjectID,
		"flag", req.BrowseFlag,
		"starting_index", req.StartingIndex,
		"requested_count", req.RequestedCount,
		"sort", req.SortCriteria)

	var (
		res *BrowseResult
		err error
	)
	switch req.BrowseFlag {
	case BrowseMetadata:
		res, err = s.browseMetadata(req)
	case BrowseDirectChildren:
		res, err = s.browseChildren(req)
	default:
		err = cdserrors.InvalidArgument("browse", req.BrowseFlag, nil)
	}

	browseDuration.WithLabelValues(flagLabel).Observe(time.Since(start).Seconds())
	if err != nil {
		browseRequests.WithLabelValues(flagLabel, "error").Inc()
		s.logger.Warn("browse failed", "object_id", req.ObjectID, "flag", req.BrowseFlag, "error", err)
		return nil, err
	}
	browseRequests.WithLabelValues(flagLabel, "success").Inc()
	return res, nil
}

func (s *Service) browseMetadata(req BrowseRequest) (*BrowseResult, error) {
	item, err := s.store.Get(normalizeID(req.ObjectID))
	if err != nil {
		return nil, err
	}

	didl, err := catalog.MarshalDIDL([]*catalog.Item{item}, req.ContentURL)
	if err != nil {
		return nil, cdserrors.Wrap(err, cdserrors.ErrorTypeInternal, "browse_metadata")
	}

	return &BrowseResult{
		Result:         didl,
		NumberReturned: 1,
		TotalMatches:   1,
		UpdateID:       item.UpdateID(),
	}, nil
}

func (s *Service) browseChildren(req BrowseRequest) (*BrowseResult, error) {
	container, err := s.store.Get(normalizeID(req.ObjectID))
	if err != nil {
		return nil, err
	}
	if !container.IsContainer() {
		return nil, cdserrors.NotFound("browse_children", cdserrors.ErrNotContainer).WithObject(container.ID().String())
	}

	children := s.store.Children(container)
	if req.SortCriteria != "" {
		SortByTitle(children)
	}

	total := len(children)
	window := Window(children, req.StartingIndex, req.RequestedCount)

	didl, err := catalog.MarshalDIDL(window, req.ContentURL)
	if err != nil {
		return nil, cdserrors.Wrap(err, cdserrors.ErrorTypeInternal, "browse_children")
	}
	browseReturned.Observe(float64(len(window)))

	return &BrowseResult{
		Result:         didl,
		NumberReturned: len(window),
		TotalMatches:   total,
		UpdateID:       container.UpdateID(),
	}, nil
}

// Search is declared by the service but has no implementation.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*BrowseResult, error) {
	s.logger.Debug("search request rejected", "container_id", req.ContainerID, "criteria", req.SearchCriteria)
	return nil, cdserrors.NotSupported("search")
}

// GetSearchCapabilities returns the searchable properties, none.
func (s *Service) GetSearchCapabilities() string {
	return ""
}

// GetSortCapabilities returns the sortable properties, none declared.
func (s *Service) GetSortCapabilities() string {
	return ""
}

// Window applies StartingIndex and RequestedCount to items. Non-positive
// values leave that side of the window open.
func Window(items []*catalog.Item, startingIndex, requestedCount int) []*catalog.Item {
	if startingIndex > 0 {
		if startingIndex > len(items) {
			items = nil
		} else {
			items = items[startingIndex:]
		}
	}
	if requestedCount > 0 && requestedCount < len(items) {
		items = items[:requestedCount]
	}
	return items
}

// SortByTitle stable-sorts items by title, falling back to name.
func SortByTitle(items []*catalog.Item) {
	keys := make(map[*catalog.Item]string, len(items))
	for _, it := range items {
		keys[it] = it.SortKey()
	}
	sort.SliceStable(items, func(i, j int) bool {
		return keys[items[i]] < keys[items[j]]
	})
}

func normalizeID(id catalog.ID) catalog.ID {
	if id == 0 {
		return catalog.RootID
	}
	return id
}
