package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/reelcut/reelcut/internal/config"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "/tmp/My Cool.Video.mp4", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "my-cool-video-20260212-103045Z-") {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if len(base) != len("my-cool-video-20260212-103045Z-")+6 {
		t.Fatalf("unexpected run dir suffix length: %s", base)
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	tr := filepath.Join(dir, "episode.txt")
	media := filepath.Join(dir, "episode.mp4")
	for _, p := range []string{tr, media} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	valid := Config{
		TranscriptPath:   tr,
		MediaPath:        media,
		App:              config.Default(),
		OpenRouterAPIKey: "sk-or-v1-test",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	noKey := valid
	noKey.OpenRouterAPIKey = ""
	if err := noKey.Validate(); err == nil {
		t.Fatal("missing API key must be rejected")
	}

	missing := valid
	missing.TranscriptPath = filepath.Join(dir, "nope.txt")
	if err := missing.Validate(); err == nil {
		t.Fatal("missing transcript must be rejected")
	}

	badHost := valid
	badHost.App.Oracle.BaseURL = "https://evil.example"
	if err := badHost.Validate(); err == nil {
		t.Fatal("unknown oracle host must be rejected")
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}
