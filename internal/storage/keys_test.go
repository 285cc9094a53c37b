package storage

import "testing"

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "media/u1/abc.webm", want: "media/u1/abc.webm", ok: true},
		{in: "/media/u1/abc.webm", want: "media/u1/abc.webm", ok: true},
		{in: "", ok: false},
		{in: "../secrets", ok: false},
		{in: "media/../../etc/passwd", ok: false},
		{in: "media//double", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CleanKey(tt.in)
			if ok != tt.ok {
				t.Fatalf("CleanKey(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("CleanKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeysNormalizeExtension(t *testing.T) {
	if got := CoverKey("v1", "png"); got != "covers/v1.png" {
		t.Errorf("CoverKey = %q", got)
	}
	if got := NarrationKey("v1", ".mp3"); got != "narrations/v1.mp3" {
		t.Errorf("NarrationKey = %q", got)
	}
	if got := MediaKey("u1", "v1", ""); got != "media/u1/v1" {
		t.Errorf("MediaKey = %q", got)
	}
}

func TestProviderFor(t *testing.T) {
	tests := map[string]Provider{
		"https://abc.r2.cloudflarestorage.com":   ProviderR2,
		"https://proj.supabase.co/storage/v1/s3": ProviderSupabase,
		"s3.us-east-1.amazonaws.com":             ProviderS3,
		"localhost:9000":                         ProviderS3Compatible,
	}
	for endpoint, want := range tests {
		if got := providerFor(endpoint); got != want {
			t.Errorf("providerFor(%q) = %q, want %q", endpoint, got, want)
		}
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		raw    string
		useSSL bool
		want   string
	}{
		{"localhost:9000", false, "http://localhost:9000"},
		{"localhost:9000", true, "https://localhost:9000"},
		{"https://proj.supabase.co/storage/v1/s3/", true, "https://proj.supabase.co/storage/v1/s3"},
		{"http://minio:9000", true, "https://minio:9000"},
	}
	for _, tt := range tests {
		got, err := endpointURL(tt.raw, tt.useSSL)
		if err != nil {
			t.Fatalf("endpointURL(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("endpointURL(%q, %v) = %q, want %q", tt.raw, tt.useSSL, got, tt.want)
		}
	}
	if _, err := endpointURL("  ", false); err == nil {
		t.Error("empty endpoint should fail")
	}
}

func TestNewStorage_RequiresBucket(t *testing.T) {
	if _, err := NewStorage(&S3Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
