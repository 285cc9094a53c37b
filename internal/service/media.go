package service

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vibelog/backend/internal/domain"
)

// MediaKind is how the pipeline treats an upload.
type MediaKind int

const (
	MediaUnsupported MediaKind = iota
	MediaText
	MediaAudio
	MediaVideo
)

var textTypes = map[string]bool{
	"text/plain":      true,
	"text/markdown":   true,
	"text/x-markdown": true,
}

var audioTypes = map[string]bool{
	"audio/mpeg":   true,
	"audio/mp3":    true,
	"audio/mp4":    true,
	"audio/m4a":    true,
	"audio/x-m4a":  true,
	"audio/wav":    true,
	"audio/x-wav":  true,
	"audio/wave":   true,
	"audio/webm":   true,
	"audio/ogg":    true,
	"audio/flac":   true,
	"audio/x-flac": true,
	"audio/aac":    true,
}

var videoTypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
	"video/mpeg":      true,
	"video/ogg":       true,
}

var mediaExtensions = map[string]string{
	"text/plain":      ".txt",
	"text/markdown":   ".md",
	"text/x-markdown": ".md",
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/mp4":       ".m4a",
	"audio/m4a":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"audio/wave":      ".wav",
	"audio/webm":      ".webm",
	"audio/ogg":       ".ogg",
	"audio/flac":      ".flac",
	"audio/x-flac":    ".flac",
	"audio/aac":       ".aac",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
	"video/mpeg":      ".mpeg",
	"video/ogg":       ".ogv",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
}

// NormalizeMIME lowercases a content type and drops its parameters.
func NormalizeMIME(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// DetectMIME trusts the declared type unless it is missing or generic, in
// which case the content is sniffed. The filename extension is the last resort.
func DetectMIME(declared, filename string, head []byte) string {
	mt := NormalizeMIME(declared)
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if len(head) > 0 {
		sniffed := NormalizeMIME(mimetype.Detect(head).String())
		if sniffed != "application/octet-stream" {
			return sniffed
		}
	}
	if byExt := NormalizeMIME(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// ClassifyMIME maps a normalized content type to its pipeline branch.
func ClassifyMIME(mt string) MediaKind {
	switch {
	case textTypes[mt]:
		return MediaText
	case audioTypes[mt]:
		return MediaAudio
	case videoTypes[mt]:
		return MediaVideo
	default:
		return MediaUnsupported
	}
}

// ExtensionFor picks a storage extension from the content type, then the filename.
func ExtensionFor(mt, filename string) string {
	if ext, ok := mediaExtensions[mt]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(filename))
}

func (k MediaKind) domainType() *domain.MediaType {
	var mt domain.MediaType
	switch k {
	case MediaAudio:
		mt = domain.MediaTypeAudio
	case MediaVideo:
		mt = domain.MediaTypeVideo
	default:
		return nil
	}
	return &mt
}
