package cds

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mantonx/upnpcds/internal/catalog"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
	"github.com/mantonx/upnpcds/internal/utils"
)

// matching returns the repositories whose mount path covers path, in
// registration order.
func (s *Service) matching(path string) []Repository {
	var out []Repository
	for _, repo := range s.Repositories() {
		if utils.HasPathPrefix(path, repo.MountPath()) {
			out = append(out, repo)
		} else {
			s.logger.Trace("repository skipped, path not under mount", "mount_path", repo.MountPath(), "path", path)
		}
	}
	return out
}

// RouteBrowse asks every repository mounted above item to refresh it and
// concatenates their results in registration order. The first failure aborts
// the whole operation and no partial result is returned.
func (s *Service) RouteBrowse(ctx context.Context, item *catalog.Item) ([]*catalog.Item, error) {
	path := item.Path()
	repos := s.matching(path)

	s.logger.Debug("routing browse", "id", item.ID(), "path", path, "repositories", len(repos))

	results := make([][]*catalog.Item, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	for i, repo := range repos {
		g.Go(func() error {
			items, err := repo.Browse(gctx, item)
			if err != nil {
				s.logger.Error("repository browse failed", "mount_path", repo.MountPath(), "path", path, "error", err)
				return cdserrors.Upstream("route_browse", repo.MountPath(), err)
			}
			results[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		routedOperations.WithLabelValues("browse", "error").Inc()
		return nil, err
	}

	var list []*catalog.Item
	for _, items := range results {
		list = append(list, items...)
	}

	routedOperations.WithLabelValues("browse", "success").Inc()
	s.logger.Debug("routed browse complete", "path", path, "items", len(list))
	return list, nil
}

// RouteUpdate asks every repository mounted above item to update it. Updates
// run concurrently and the first failure is returned.
func (s *Service) RouteUpdate(ctx context.Context, item *catalog.Item) error {
	path := item.Path()
	repos := s.matching(path)

	s.logger.Debug("routing update", "id", item.ID(), "path", path, "repositories", len(repos))

	g, gctx := errgroup.WithContext(ctx)
	for _, repo := range repos {
		g.Go(func() error {
			if err := repo.Update(gctx, item); err != nil {
				s.logger.Error("repository update failed", "mount_path", repo.MountPath(), "path", path, "error", err)
				return cdserrors.Upstream("route_update", repo.MountPath(), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		routedOperations.WithLabelValues("update", "error").Inc()
		return err
	}
	routedOperations.WithLabelValues("update", "success").Inc()
	return nil
}
