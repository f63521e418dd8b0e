package types

import (
	"path/filepath"
	"slices"
	"strings"
)

// Format represents a container format the registry can detect.
type Format int

const (
	// FormatUnknown represents an unknown or unsupported format.
	FormatUnknown Format = iota
	// FormatMP4 represents ISO base media files (MP4, M4A, M4B).
	FormatMP4
	// FormatADTS represents raw AAC elementary streams framed with ADTS headers.
	FormatADTS
)

// String returns the short probe name of the format.
func (f Format) String() string {
	switch f {
	case FormatMP4:
		return "mp4"
	case FormatADTS:
		return "adts"
	default:
		return "unknown"
	}
}

// Extensions returns common file extensions for this format.
func (f Format) Extensions() []string {
	switch f {
	case FormatMP4:
		return []string{".m4a", ".mp4", ".m4b", ".m4p"}
	case FormatADTS:
		return []string{".aac", ".adts"}
	default:
		return nil
	}
}

// MimeTypes returns MIME types commonly served for this format.
func (f Format) MimeTypes() []string {
	switch f {
	case FormatMP4:
		return []string{"audio/mp4", "audio/x-m4a", "audio/m4a", "video/mp4"}
	case FormatADTS:
		return []string{"audio/aac", "audio/aacp", "audio/x-aac"}
	default:
		return nil
	}
}

// Hints carry out-of-band information about a byte source that lets the
// registry try the most likely probe first. Either field may be empty.
type Hints struct {
	MimeType      string
	FileExtension string
}

// HintsFromPath derives hints from a file name's extension.
func HintsFromPath(path string) Hints {
	return Hints{FileExtension: filepath.Ext(path)}
}

// Empty reports whether no hint is set.
func (h Hints) Empty() bool {
	return h.MimeType == "" && h.FileExtension == ""
}

// Matches reports whether the hints point at format f.
func (h Hints) Matches(f Format) bool {
	if h.MimeType != "" {
		mime, _, _ := strings.Cut(strings.ToLower(h.MimeType), ";")
		if slices.Contains(f.MimeTypes(), strings.TrimSpace(mime)) {
			return true
		}
	}
	if h.FileExtension != "" {
		ext := strings.ToLower(h.FileExtension)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if slices.Contains(f.Extensions(), ext) {
			return true
		}
	}
	return false
}
