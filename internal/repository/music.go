package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/mantonx/upnpcds/internal/catalog"
	"github.com/mantonx/upnpcds/internal/cds"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
)

// ArtistsContainer is the container under the mount root holding the
// by-artist taxonomy.
const ArtistsContainer = "Artists"

// MusicOptions configures a MusicRepository.
type MusicOptions struct {
	Extractor TagExtractor
	Mime      cds.MimeResolver
	Cache     *TagCache
	Workers   int
}

// MusicRepository indexes audio files by their tags. Every file appears
// twice: under Artists/<artist>/<album>/ and under <genre>/<album>/.
type MusicRepository struct {
	*ScannerRepository

	logger    hclog.Logger
	extractor TagExtractor
	mime      cds.MimeResolver
	cache     *TagCache
}

// NewMusicRepository creates a music repository serving sourceRoot at
// mountPath.
func NewMusicRepository(mountPath, sourceRoot string, opts MusicOptions, logger hclog.Logger) *MusicRepository {
	if opts.Extractor == nil {
		opts.Extractor = FileTagExtractor{}
	}
	if opts.Mime == nil {
		opts.Mime = NewMimeResolver()
	}

	m := &MusicRepository{
		logger:    logger.Named("music").With("mount_path", mountPath),
		extractor: opts.Extractor,
		mime:      opts.Mime,
		cache:     opts.Cache,
	}
	m.ScannerRepository = NewScannerRepository(mountPath, sourceRoot, m, opts.Workers, logger)
	return m
}

// Kind implements Handler.
func (m *MusicRepository) Kind() string {
	return "music"
}

// Keep accepts files whose MIME type is audio.
func (m *MusicRepository) Keep(entry *Entry) bool {
	mimeType, err := m.mime.MimeType(entry.Path)
	if err != nil || MajorType(mimeType) != "audio" {
		return false
	}
	entry.Mime = mimeType
	return true
}

// Ingest reads the file's tags and inserts it into both taxonomy chains.
// The chains run concurrently and each returns its own leaf.
func (m *MusicRepository) Ingest(ctx context.Context, svc *cds.Service, mount *catalog.Item, entry Entry) ([]*catalog.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := m.readTags(entry)
	if err != nil {
		return nil, cdserrors.IOFailure("read_tags", entry.Path, err)
	}
	tags := raw.WithDefaults()

	attrs, err := svc.FileAttributes(entry.Path)
	if err != nil {
		return nil, err
	}

	md := map[string]string{
		catalog.MetaTitle:  tags.Title,
		catalog.MetaArtist: tags.Artist,
		catalog.MetaAlbum:  tags.Album,
		catalog.MetaGenre:  tags.Genre,
	}

	var (
		byArtist, byGenre *catalog.Item
		g                 errgroup.Group
	)

	g.Go(func() error {
		album, err := m.ensureChain(svc.Store(), mount,
			link{ArtistsContainer, catalog.ClassContainer},
			link{tags.Artist, catalog.ClassMusicArtist},
			link{tags.Album, catalog.ClassMusicAlbum})
		if err != nil {
			return fmt.Errorf("failed to register artist chain: %w", err)
		}
		byArtist, err = m.insertTrack(svc, album, tags.Title, attrs, md)
		return err
	})

	g.Go(func() error {
		album, err := m.ensureChain(svc.Store(), mount,
			link{tags.Genre, catalog.ClassMusicGenre},
			link{tags.Album, catalog.ClassMusicAlbum})
		if err != nil {
			return fmt.Errorf("failed to register genre chain: %w", err)
		}
		byGenre, err = m.insertTrack(svc, album, tags.Title, attrs, md)
		return err
	})

	if err := g.Wait(); err != nil {
		// A leaf linked by the other chain stays and marks the file ingested.
		var partial []*catalog.Item
		for _, leaf := range []*catalog.Item{byArtist, byGenre} {
			if leaf != nil {
				partial = append(partial, leaf)
			}
		}
		if len(partial) == 0 {
			return nil, err
		}
		m.logger.Warn("track registered in one chain only", "path", entry.Path, "error", err)
		return partial, nil
	}

	m.logger.Trace("track registered", "path", entry.Path, "artist", tags.Artist, "album", tags.Album, "genre", tags.Genre)
	return []*catalog.Item{byArtist, byGenre}, nil
}

func (m *MusicRepository) readTags(entry Entry) (Tags, error) {
	if m.cache != nil {
		if tags, ok := m.cache.Get(entry.Path, entry.Size, entry.ModTime); ok {
			return tags, nil
		}
	}

	tags, err := m.extractor.Extract(entry.Path)
	if err != nil {
		return Tags{}, err
	}

	if m.cache != nil {
		if err := m.cache.Put(entry.Path, entry.Size, entry.ModTime, tags); err != nil {
			m.logger.Warn("failed to cache tags", "path", entry.Path, "error", err)
		}
	}
	return tags, nil
}

type link struct {
	label string
	class catalog.Class
}

// ensureChain walks parent/links[0]/links[1]/..., creating each missing
// container, and returns the last one.
func (m *MusicRepository) ensureChain(store *catalog.Store, parent *catalog.Item, links ...link) (*catalog.Item, error) {
	current := parent
	for _, l := range links {
		child, created, err := ensureNamedContainer(store, current, l.label, l.class)
		if err != nil {
			return nil, err
		}
		if created {
			m.logger.Debug("container created", "path", child.Path(), "class", l.class.String())
		}
		current = child
	}
	return current, nil
}

// insertTrack creates the track leaf under album. When the title is taken
// by a sibling the name gets a "  (#n)" suffix, n counting from 1.
func (m *MusicRepository) insertTrack(svc *cds.Service, album *catalog.Item, title string, attrs []catalog.ItemOption, md map[string]string) (*catalog.Item, error) {
	base := segmentName(title)
	for n := 0; ; n++ {
		name, display := base, title
		if n > 0 {
			name = fmt.Sprintf("%s  (#%d)", base, n)
			display = fmt.Sprintf("%s  (#%d)", title, n)
		}

		opts := append(append([]catalog.ItemOption{}, attrs...),
			catalog.WithTitle(display),
			catalog.WithMetadata(md))

		item, err := svc.NewItem(album, name, catalog.ClassMusicTrack, opts...)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, cdserrors.ErrNameTaken) {
			return nil, err
		}
	}
}

// ensureNamedContainer is the get-or-create step shared by both chains. The
// label is kept as title when it cannot be used verbatim as a name.
func ensureNamedContainer(store *catalog.Store, parent *catalog.Item, label string, class catalog.Class) (*catalog.Item, bool, error) {
	name := segmentName(label)
	var opts []catalog.ItemOption
	if name != label {
		opts = append(opts, catalog.WithTitle(label))
	}
	return store.EnsureChild(parent, name, class, opts...)
}

// segmentName makes a tag value usable as a path segment.
func segmentName(label string) string {
	name := strings.ReplaceAll(label, "/", "-")
	if strings.Trim(name, ".") == "" {
		name = "_" + name
	}
	return name
}
