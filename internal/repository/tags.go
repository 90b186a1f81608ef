package repository

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// Placeholders used when a tag is missing.
const (
	UnknownAlbum  = "Album unknown"
	UnknownTitle  = "Title unknown"
	UnknownArtist = "Artist unknown"
	UnknownGenre  = "Genre unknown"
)

// Tags holds the fields the music taxonomy is built from.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Genre  string
}

// Get returns a field by its lower-case tag name.
func (t Tags) Get(field string) (string, bool) {
	var v string
	switch field {
	case "title":
		v = t.Title
	case "artist":
		v = t.Artist
	case "album":
		v = t.Album
	case "genre":
		v = t.Genre
	}
	return v, v != ""
}

// WithDefaults fills empty fields with their "<Field> unknown" placeholder.
func (t Tags) WithDefaults() Tags {
	if t.Album == "" {
		t.Album = UnknownAlbum
	}
	if t.Title == "" {
		t.Title = UnknownTitle
	}
	if t.Artist == "" {
		t.Artist = UnknownArtist
	}
	if t.Genre == "" {
		t.Genre = UnknownGenre
	}
	return t
}

// TagExtractor reads the embedded tags of an audio file.
type TagExtractor interface {
	Extract(path string) (Tags, error)
}

// FileTagExtractor reads ID3, MP4, FLAC and OGG tags with dhowden/tag.
type FileTagExtractor struct{}

// Extract opens path and decodes its tags. A file without any recognizable
// tag block yields empty Tags so it falls back to the placeholders.
func (FileTagExtractor) Extract(path string) (Tags, error) {
	file, err := os.Open(path)
	if err != nil {
		return Tags{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	md, err := tag.ReadFrom(file)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return Tags{}, nil
	}
	if err != nil {
		return Tags{}, fmt.Errorf("failed to read metadata from file: %w", err)
	}

	artist := cleanString(md.Artist())
	if artist == "" {
		artist = cleanString(md.AlbumArtist())
	}

	return Tags{
		Title:  cleanString(md.Title()),
		Artist: artist,
		Album:  cleanString(md.Album()),
		Genre:  cleanString(md.Genre()),
	}, nil
}

func cleanString(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}
