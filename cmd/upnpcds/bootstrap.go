package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/mantonx/upnpcds/internal/catalog"
	"github.com/mantonx/upnpcds/internal/cds"
	"github.com/mantonx/upnpcds/internal/config"
	"github.com/mantonx/upnpcds/internal/database"
	"github.com/mantonx/upnpcds/internal/logger"
	"github.com/mantonx/upnpcds/internal/repository"
)

// app holds the components shared by the serve and tree commands.
type app struct {
	logger    hclog.Logger
	svc       *cds.Service
	db        *gorm.DB
	logCloser io.Closer
}

// newApp sets up logging, the optional tag cache and the catalog, then
// initializes every configured repository. A nil log builds one from cfg.
func newApp(ctx context.Context, cfg *config.Config, log hclog.Logger) (*app, error) {
	a := &app{}

	if log == nil {
		l, closer, err := logger.New("upnpcds", logger.Options{
			Level:    cfg.Logging.Level,
			Format:   cfg.Logging.Format,
			Output:   cfg.Logging.Output,
			FilePath: cfg.Logging.FilePath,
			Colors:   cfg.Logging.EnableColors,
		})
		if err != nil {
			return nil, err
		}
		logger.SetDefault(l)
		log, a.logCloser = l, closer
	}
	a.logger = logger.OrDefault(log)

	var cache *repository.TagCache
	if cfg.Cache.Enabled {
		db, err := database.Open(cfg.Cache, a.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
		cache = repository.NewTagCache(db, a.logger)
	}

	mime := repository.NewMimeResolver()
	a.svc = cds.NewService(catalog.NewStore(a.logger), mime, a.logger)

	repos, err := buildRepositories(cfg.ContentDirectory, mime, cache, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.svc.SetRepositories(ctx, repos); err != nil {
		a.Close()
		return nil, err
	}

	a.logger.Info("catalog ready",
		"repositories", len(repos),
		"items", a.svc.Store().Len(),
		"system_update_id", a.svc.SystemUpdateID())
	return a, nil
}

// buildRepositories creates one repository per configured entry.
func buildRepositories(cfg config.ContentDirectoryConfig, mime cds.MimeResolver, cache *repository.TagCache, log hclog.Logger) ([]cds.Repository, error) {
	repos := make([]cds.Repository, 0, len(cfg.Repositories))
	for _, rc := range cfg.Repositories {
		switch rc.Type {
		case config.RepositoryTypeMusic:
			repos = append(repos, repository.NewMusicRepository(rc.MountPath, rc.Path, repository.MusicOptions{
				Mime:    mime,
				Cache:   cache,
				Workers: cfg.ScanWorkers,
			}, log))
		case config.RepositoryTypeDirectory:
			repos = append(repos, repository.NewDirectoryRepository(rc.MountPath, rc.Path, mime, cfg.ScanWorkers, log))
		default:
			return nil, fmt.Errorf("unsupported repository type %q for %s", rc.Type, rc.MountPath)
		}
	}
	return repos, nil
}

// Close releases the cache database and the log file.
func (a *app) Close() {
	if a.db != nil {
		if err := database.Close(a.db); err != nil && a.logger != nil {
			a.logger.Warn("failed to close cache database", "error", err)
		}
		a.db = nil
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}
