package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/upnpcds/internal/catalog"
	"github.com/mantonx/upnpcds/internal/cds"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
)

func newMusic(t *testing.T, src string, ext TagExtractor, workers int) (*cds.Service, *MusicRepository) {
	t.Helper()
	svc := newTestService()
	repo := NewMusicRepository("/music", src, MusicOptions{Extractor: ext, Workers: workers}, hclog.NewNullLogger())
	require.NoError(t, svc.SetRepositories(context.Background(), []cds.Repository{repo}))
	return svc, repo
}

func TestMusic_TwoTaxonomyChains(t *testing.T) {
	src := t.TempDir()
	path := writeFile(t, src, "a.mp3", []byte("audio"))

	ext := newFakeExtractor()
	ext.set("a.mp3", Tags{Artist: "A", Genre: "G", Album: "AL", Title: "T"})
	svc, _ := newMusic(t, src, ext, 4)

	byArtist := lookup(t, svc, "/music/Artists/A/AL/T")
	byGenre := lookup(t, svc, "/music/G/AL/T")

	assert.NotEqual(t, byArtist.ID(), byGenre.ID())
	assert.Equal(t, path, byArtist.BackingPath())
	assert.Equal(t, path, byGenre.BackingPath())
	assert.Equal(t, catalog.ClassMusicTrack, byArtist.Class())
	assert.Equal(t, "T", byArtist.Title())
	assert.Equal(t, "http-get:*:audio/mpeg:*", byArtist.Resource().ProtocolInfo)
	assert.Equal(t, int64(5), byArtist.Resource().Size)
	assert.Equal(t, "A", byArtist.Metadata()[catalog.MetaArtist])

	assert.Equal(t, catalog.ClassMusicArtist, lookup(t, svc, "/music/Artists/A").Class())
	assert.Equal(t, catalog.ClassMusicAlbum, lookup(t, svc, "/music/Artists/A/AL").Class())
	assert.Equal(t, catalog.ClassMusicGenre, lookup(t, svc, "/music/G").Class())
	assert.True(t, lookup(t, svc, "/music/Artists").Virtual())
	assert.True(t, lookup(t, svc, "/music/G/AL").Virtual())
}

func TestMusic_TitleCollisionSuffixes(t *testing.T) {
	src := t.TempDir()
	ext := newFakeExtractor()
	for i := 0; i < 3; i++ {
		writeFile(t, src, trackFile(i), []byte("audio"))
		ext.set(trackFile(i), Tags{Artist: "A", Genre: "G", Album: "AL", Title: "T"})
	}

	// One worker keeps insertion order equal to walk order.
	svc, _ := newMusic(t, src, ext, 1)

	album := lookup(t, svc, "/music/Artists/A/AL")
	assert.Equal(t, []string{"T", "T  (#1)", "T  (#2)"}, childNames(svc, album))
	assert.Equal(t, []string{"T", "T  (#1)", "T  (#2)"}, childNames(svc, lookup(t, svc, "/music/G/AL")))

	first := lookup(t, svc, "/music/Artists/A/AL/T")
	assert.Equal(t, src+"/"+trackFile(0), first.BackingPath())
	assert.Equal(t, "T  (#2)", lookup(t, svc, "/music/Artists/A/AL/T  (#2)").Title())
}

func TestMusic_DefaultsForMissingTags(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "bare.mp3", []byte("audio"))
	svc, _ := newMusic(t, src, newFakeExtractor(), 2)

	leaf := lookup(t, svc, "/music/Artists/Artist unknown/Album unknown/Title unknown")
	assert.Equal(t, "Title unknown", leaf.Title())
	lookup(t, svc, "/music/Genre unknown/Album unknown/Title unknown")
}

func TestMusic_SlashInTagValues(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "x.mp3", []byte("audio"))
	ext := newFakeExtractor()
	ext.set("x.mp3", Tags{Artist: "AC/DC", Genre: "Rock", Album: "Back in Black", Title: "Hells Bells"})
	svc, _ := newMusic(t, src, ext, 1)

	artist := lookup(t, svc, "/music/Artists/AC-DC")
	assert.Equal(t, "AC/DC", artist.Title())
	lookup(t, svc, "/music/Artists/AC-DC/Back in Black/Hells Bells")
}

func TestMusic_ConcurrentIngestKeepsSiblingsUnique(t *testing.T) {
	src := t.TempDir()
	ext := newFakeExtractor()
	const files = 40
	for i := 0; i < files; i++ {
		writeFile(t, src, trackFile(i), []byte("audio"))
		ext.set(trackFile(i), Tags{
			Artist: fmt.Sprintf("Artist %d", i%3),
			Genre:  "Jazz",
			Album:  "Shared",
			Title:  "Same",
		})
	}

	svc, _ := newMusic(t, src, ext, 16)

	artists := lookup(t, svc, "/music/Artists")
	assert.Len(t, svc.Store().Children(artists), 3)

	genres := svc.Store().Children(lookup(t, svc, "/music"))
	assert.Len(t, genres, 2, "Artists and Jazz")

	album := lookup(t, svc, "/music/Jazz/Shared")
	names := childNames(svc, album)
	assert.Len(t, names, files)

	seen := make(map[string]bool)
	for _, n := range names {
		assert.False(t, seen[n], "duplicate sibling %q", n)
		seen[n] = true
	}
	assert.True(t, seen["Same"])
	assert.True(t, seen[fmt.Sprintf("Same  (#%d)", files-1)])
}

func TestMusic_FailedFileIsSkipped(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "good.mp3", []byte("audio"))
	writeFile(t, src, "bad.mp3", []byte("audio"))
	writeFile(t, src, "cover.jpg", []byte("image"))
	writeFile(t, src, ".hidden.mp3", []byte("audio"))

	ext := newFakeExtractor()
	ext.set("good.mp3", Tags{Artist: "A", Genre: "G", Album: "AL", Title: "Good"})
	ext.fail["bad.mp3"] = errors.New("corrupt frame")

	svc, _ := newMusic(t, src, ext, 2)

	lookup(t, svc, "/music/Artists/A/AL/Good")
	assert.Equal(t, []string{"Good"}, childNames(svc, lookup(t, svc, "/music/Artists/A/AL")))
	assert.Equal(t, int32(2), ext.calls.Load())
}

func TestMusic_RefreshIngestsOnlyNewFiles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "one.mp3", []byte("audio"))
	ext := newFakeExtractor()
	ext.set("one.mp3", Tags{Artist: "A", Genre: "G", Album: "AL", Title: "One"})
	svc, repo := newMusic(t, src, ext, 2)

	items, err := svc.RouteBrowse(context.Background(), repo.MountItem())
	require.NoError(t, err)
	assert.Empty(t, items)

	writeFile(t, src, "two.mp3", []byte("audio"))
	ext.set("two.mp3", Tags{Artist: "A", Genre: "G", Album: "AL", Title: "Two"})

	items, err = svc.RouteBrowse(context.Background(), repo.MountItem())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "/music/Artists/A/AL/Two", items[0].Path())
	assert.Equal(t, "/music/G/AL/Two", items[1].Path())

	assert.Equal(t, []string{"One", "Two"}, childNames(svc, lookup(t, svc, "/music/Artists/A/AL")))
}

func TestMusic_UpdateRefreshesLeaf(t *testing.T) {
	src := t.TempDir()
	path := writeFile(t, src, "one.mp3", []byte("audio"))
	ext := newFakeExtractor()
	ext.set("one.mp3", Tags{Artist: "A", Genre: "G", Album: "AL", Title: "One"})
	svc, _ := newMusic(t, src, ext, 1)

	leaf := lookup(t, svc, "/music/G/AL/One")
	before := leaf.UpdateID()

	require.NoError(t, os.WriteFile(path, []byte("much longer audio"), 0644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	require.NoError(t, svc.RouteUpdate(context.Background(), leaf))
	assert.Equal(t, int64(17), leaf.Resource().Size)
	assert.Equal(t, before+1, leaf.UpdateID())
	assert.WithinDuration(t, later, leaf.Modified(), time.Second)

	require.NoError(t, os.Remove(path))
	err := svc.RouteUpdate(context.Background(), leaf)
	assert.True(t, errors.Is(err, cdserrors.ErrUpstream))
	assert.True(t, errors.Is(err, cdserrors.ErrIO))
}

func TestMusic_MissingSourceFailsInitialize(t *testing.T) {
	svc := newTestService()
	repo := NewMusicRepository("/music", "/does/not/exist", MusicOptions{Extractor: newFakeExtractor()}, hclog.NewNullLogger())

	err := svc.SetRepositories(context.Background(), []cds.Repository{repo})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cdserrors.ErrIO))
}

func TestFileTagExtractor_ID3v23(t *testing.T) {
	src := t.TempDir()
	path := writeFile(t, src, "tagged.mp3", id3v23(
		id3Frame("TIT2", "Blue in Green"),
		id3Frame("TPE1", "Miles Davis"),
		id3Frame("TALB", "Kind of Blue"),
		id3Frame("TCON", "Jazz"),
	))

	tags, err := FileTagExtractor{}.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "Blue in Green", tags.Title)
	assert.Equal(t, "Miles Davis", tags.Artist)
	assert.Equal(t, "Kind of Blue", tags.Album)
	assert.Equal(t, "Jazz", tags.Genre)

	v, ok := tags.Get("album")
	assert.True(t, ok)
	assert.Equal(t, "Kind of Blue", v)
	_, ok = tags.Get("composer")
	assert.False(t, ok)

	plain, err := FileTagExtractor{}.Extract(writeFile(t, src, "plain.mp3", make([]byte, 4096)))
	require.NoError(t, err)
	assert.Equal(t, Tags{}, plain)

	_, err = FileTagExtractor{}.Extract(filepath.Join(src, "missing.mp3"))
	assert.Error(t, err)
}

func TestMusic_UntaggedFileUsesPlaceholders(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "untagged.mp3", make([]byte, 4096))
	writeFile(t, src, "untagged.wav", make([]byte, 4096))

	svc, _ := newMusic(t, src, nil, 2)
	lookup(t, svc, "/music/Artists/Artist unknown/Album unknown/Title unknown")
	lookup(t, svc, "/music/Genre unknown/Album unknown/Title unknown")

	album := lookup(t, svc, "/music/Genre unknown/Album unknown")
	assert.ElementsMatch(t, []string{"Title unknown", "Title unknown  (#1)"}, childNames(svc, album))
}

func TestMusic_PartialChainIsNotDuplicatedOnRefresh(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "a.mp3", []byte("audio"))

	ext := newFakeExtractor()
	ext.set("a.mp3", Tags{Artist: "A", Genre: "G", Album: "AL", Title: "T"})

	svc := newTestService()
	mount, err := svc.AllocateItemsForPath("/music")
	require.NoError(t, err)
	// A leaf named like the genre blocks the genre chain.
	_, err = svc.NewItem(mount, "G", catalog.ClassMusicTrack)
	require.NoError(t, err)

	repo := NewMusicRepository("/music", src, MusicOptions{Extractor: ext, Workers: 1}, hclog.NewNullLogger())
	require.NoError(t, svc.SetRepositories(context.Background(), []cds.Repository{repo}))

	album := lookup(t, svc, "/music/Artists/A/AL")
	assert.Equal(t, []string{"T"}, childNames(svc, album))

	items, err := svc.RouteBrowse(context.Background(), mount)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, []string{"T"}, childNames(svc, album))
}

func TestMusic_RealExtractorEndToEnd(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "kob/01.mp3", id3v23(
		id3Frame("TIT2", "So What"),
		id3Frame("TPE1", "Miles Davis"),
		id3Frame("TALB", "Kind of Blue"),
		id3Frame("TCON", "Jazz"),
	))

	svc, _ := newMusic(t, src, nil, 2)
	lookup(t, svc, "/music/Artists/Miles Davis/Kind of Blue/So What")
	lookup(t, svc, "/music/Jazz/Kind of Blue/So What")
}
