// Package utils provides file system and path helpers shared by the content
// repositories and the HTTP layer.
package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MediaKind is the coarse media family of a file.
type MediaKind int

const (
	MediaUnknown MediaKind = iota
	MediaAudio
	MediaVideo
	MediaImage
)

// AudioExtensions lists extensions tag extraction is attempted on.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".m4b":  true,
	".aac":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".wav":  true,
	".wma":  true,
	".aiff": true,
	".alac": true,
	".ape":  true,
	".dsf":  true,
}

// VideoExtensions lists extensions mirrored as video items.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".webm": true,
	".m4v":  true,
	".mpg":  true,
	".mpeg": true,
	".ts":   true,
	".3gp":  true,
	".ogv":  true,
}

// ImageExtensions lists extensions mirrored as photo items.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

// SkippedExtensions are never ingested: sidecars, partial downloads and
// metadata written next to media by other servers.
var SkippedExtensions = map[string]bool{
	".nfo":        true,
	".cue":        true,
	".m3u":        true,
	".m3u8":       true,
	".pls":        true,
	".lrc":        true,
	".srt":        true,
	".vtt":        true,
	".sub":        true,
	".idx":        true,
	".ass":        true,
	".ssa":        true,
	".bif":        true,
	".db":         true,
	".db-journal": true,
	".db-wal":     true,
	".db-shm":     true,
	".tmp":        true,
	".temp":       true,
	".part":       true,
	".crdownload": true,
	".download":   true,
	".lock":       true,
	".swp":        true,
}

// Ext returns the lower-cased extension of path.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// KindOf classifies path by extension.
func KindOf(path string) MediaKind {
	ext := Ext(path)
	switch {
	case AudioExtensions[ext]:
		return MediaAudio
	case VideoExtensions[ext]:
		return MediaVideo
	case ImageExtensions[ext]:
		return MediaImage
	default:
		return MediaUnknown
	}
}

// IsAudioFile reports whether path carries an audio extension.
func IsAudioFile(path string) bool {
	return AudioExtensions[Ext(path)]
}

// IsSkippedFile returns true for sidecar and temporary files.
func IsSkippedFile(path string) bool {
	return SkippedExtensions[Ext(path)]
}

// IsHidden reports whether the base name is a dot file.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 1 && base[0] == '.'
}

// FileStat is the subset of a stat result the catalog records.
type FileStat struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// StatFile stats path and returns size and modification time.
func StatFile(path string) (FileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileStat{}, err
	}
	return FileStat{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}
