package gcp

import (
	"strings"
	"testing"
)

func TestResolveObjectStoragePublicBaseURL(t *testing.T) {
	base, source, err := resolveObjectStoragePublicBaseURL(StorageSettings{Mode: StorageGCS}, "")
	if err != nil || base != "" || source != "gcs_default" {
		t.Fatalf("gcs default: base=%q source=%q err=%v", base, source, err)
	}

	base, source, err = resolveObjectStoragePublicBaseURL(StorageSettings{
		Mode:         StorageGCSEmulator,
		EmulatorHost: "http://fake-gcs:4443",
	}, "")
	if err != nil || base != "http://fake-gcs:4443" || source != "storage_emulator_host" {
		t.Fatalf("emulator fallback: base=%q source=%q err=%v", base, source, err)
	}

	base, source, err = resolveObjectStoragePublicBaseURL(StorageSettings{Mode: StorageGCS}, "http://localhost:4443/")
	if err != nil || base != "http://localhost:4443" || source != "media_public_base_url" {
		t.Fatalf("override: base=%q source=%q err=%v", base, source, err)
	}

	if _, _, err := resolveObjectStoragePublicBaseURL(StorageSettings{Mode: StorageGCS}, "localhost"); err == nil {
		t.Fatalf("relative override: expected error")
	}
}

func TestPublicURL(t *testing.T) {
	cfg := bucketConfig{name: "speakwell-media"}

	if got := publicURL(cfg, StorageGCS, "", "", "/recordings/a b.mp4"); got != "https://storage.googleapis.com/speakwell-media/recordings/a b.mp4" {
		t.Fatalf("gcs url: %q", got)
	}
	if got := publicURL(bucketConfig{name: "x", cdnDomain: "cdn.example.com"}, StorageGCS, "", "", "k.png"); got != "https://cdn.example.com/k.png" {
		t.Fatalf("cdn url: %q", got)
	}
	got := publicURL(cfg, StorageGCSEmulator, "", "http://fake-gcs:4443", "avatars/u.png")
	if !strings.HasPrefix(got, "http://fake-gcs:4443/storage/v1/b/speakwell-media/o/") || !strings.Contains(got, "avatars%2Fu.png") {
		t.Fatalf("emulator url: %q", got)
	}
	if got := publicURL(cfg, StorageGCS, "http://media.local", "", "k.png"); got != "http://media.local/speakwell-media/k.png" {
		t.Fatalf("public base url: %q", got)
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"a.PNG":         "image/png",
		"rec/1.webm":    "video/webm",
		"rec/1.mp4?x=1": "video/mp4",
		"voice.m4a":     "audio/mp4",
		"notes.txt":     "",
	}
	for key, want := range cases {
		if got := ContentTypeForKey(key); got != want {
			t.Fatalf("ContentTypeForKey(%q): got %q want %q", key, got, want)
		}
	}
}
