package storage

import (
	"fmt"
	"path"
	"strings"
)

// MediaKey is where an uploaded audio or video blob lives.
func MediaKey(userID, vibelogID, ext string) string {
	return fmt.Sprintf("media/%s/%s%s", userID, vibelogID, normalizeExt(ext))
}

// CoverKey is where a vibelog's cover image lives.
func CoverKey(vibelogID, ext string) string {
	return fmt.Sprintf("covers/%s%s", vibelogID, normalizeExt(ext))
}

// NarrationKey is where a vibelog's spoken narration lives.
func NarrationKey(vibelogID, ext string) string {
	return fmt.Sprintf("narrations/%s%s", vibelogID, normalizeExt(ext))
}

// VoiceSampleKey is where a user's voice-cloning sample lives.
func VoiceSampleKey(userID, ext string) string {
	return fmt.Sprintf("voices/%s%s", userID, normalizeExt(ext))
}

// CleanKey rejects client-supplied keys that try to escape their prefix.
func CleanKey(key string) (string, bool) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", false
	}
	cleaned := path.Clean(key)
	if cleaned != key || strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	return cleaned, true
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}
