package service

import "testing"

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		filename string
		head     []byte
		want     string
	}{
		{"declared wins", "Audio/MPEG; charset=binary", "x.bin", nil, "audio/mpeg"},
		{"sniffed when generic", "application/octet-stream", "x", []byte("%PDF-1.7\n"), "application/pdf"},
		{"sniffed when missing", "", "", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), "image/png"},
		{"extension fallback", "", "notes.PDF", nil, "application/pdf"},
		{"unknown", "", "blob", nil, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIME(tt.declared, tt.filename, tt.head); got != tt.want {
				t.Errorf("DetectMIME() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyMIME(t *testing.T) {
	tests := map[string]MediaKind{
		"text/plain":      MediaText,
		"text/markdown":   MediaText,
		"audio/webm":      MediaAudio,
		"audio/x-m4a":     MediaAudio,
		"video/quicktime": MediaVideo,
		"image/png":       MediaUnsupported,
		"application/pdf": MediaUnsupported,
		"":                MediaUnsupported,
	}
	for mt, want := range tests {
		if got := ClassifyMIME(mt); got != want {
			t.Errorf("ClassifyMIME(%q) = %v, want %v", mt, got, want)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	if got := ExtensionFor("audio/x-wav", "x.bin"); got != ".wav" {
		t.Errorf("ExtensionFor(audio/x-wav) = %q", got)
	}
	if got := ExtensionFor("audio/unknown", "Clip.OPUS"); got != ".opus" {
		t.Errorf("ExtensionFor falls back to the filename, got %q", got)
	}
}
