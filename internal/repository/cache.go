package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mantonx/upnpcds/internal/database"
)

// TagCache remembers extracted tags so rescans and restarts skip decoding
// files whose size and modification time did not change.
type TagCache struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewTagCache wraps an opened cache database.
func NewTagCache(db *gorm.DB, logger hclog.Logger) *TagCache {
	return &TagCache{
		db:     db,
		logger: logger.Named("tag-cache"),
	}
}

// Get returns the cached tags for path when the record matches size and
// modTime.
func (c *TagCache) Get(path string, size int64, modTime time.Time) (Tags, bool) {
	var rec database.TagRecord
	err := c.db.Where("path = ?", path).First(&rec).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.logger.Warn("tag cache lookup failed", "path", path, "error", err)
		}
		return Tags{}, false
	}

	if rec.Size != size || !rec.ModTime.Equal(cacheTime(modTime)) {
		return Tags{}, false
	}

	return Tags{
		Title:  rec.Title,
		Artist: rec.Artist,
		Album:  rec.Album,
		Genre:  rec.Genre,
	}, true
}

// Put stores tags for path, replacing any previous record.
func (c *TagCache) Put(path string, size int64, modTime time.Time, tags Tags) error {
	rec := database.TagRecord{
		Path:    path,
		Size:    size,
		ModTime: cacheTime(modTime),
		Title:   tags.Title,
		Artist:  tags.Artist,
		Album:   tags.Album,
		Genre:   tags.Genre,
	}

	err := c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"size", "mod_time", "title", "artist", "album", "genre", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to store tags for %s: %w", path, err)
	}
	return nil
}

func cacheTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
