package repository

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mantonx/upnpcds/internal/utils"
)

// extensionMimeTypes answers the common cases without opening the file.
var extensionMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".m4b":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".wma":  "audio/x-ms-wma",
	".aiff": "audio/aiff",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".wmv":  "video/x-ms-wmv",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".ts":   "video/mp2t",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// MimeResolver looks a file's MIME type up by extension and falls back to
// sniffing its content.
type MimeResolver struct{}

// NewMimeResolver creates a resolver.
func NewMimeResolver() *MimeResolver {
	return &MimeResolver{}
}

// MimeType returns the MIME type of path without parameters.
func (r *MimeResolver) MimeType(path string) (string, error) {
	if m, ok := extensionMimeTypes[utils.Ext(path)]; ok {
		return m, nil
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return baseMime(detected.String()), nil
}

// MajorType returns the part of a MIME type before the slash.
func MajorType(mimeType string) string {
	major, _, _ := strings.Cut(mimeType, "/")
	return major
}

func baseMime(m string) string {
	base, _, _ := strings.Cut(m, ";")
	return strings.TrimSpace(base)
}
