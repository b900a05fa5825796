package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Selection.TopK != 5 {
		t.Fatalf("expected default top_k, got %d", cfg.Selection.TopK)
	}
}

func TestLoad_OverlaysFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reelcut.toml")
	body := `
[selection]
top_k = 3

[smoother]
max_velocity_px_per_sec = 250.0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Selection.TopK != 3 {
		t.Fatalf("expected top_k=3, got %d", cfg.Selection.TopK)
	}
	if cfg.Smoother.MaxVelocityPxPerSec != 250 {
		t.Fatalf("expected 250, got %v", cfg.Smoother.MaxVelocityPxPerSec)
	}
	// Untouched sections keep defaults.
	if cfg.Chunking.MaxSeconds != 90 {
		t.Fatalf("expected default chunk max, got %v", cfg.Chunking.MaxSeconds)
	}
}

func TestValidate_RejectsIllegalEnum(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Assembly.ImageTransition = "wipe"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "image_transition") {
		t.Fatalf("expected image_transition error, got %v", err)
	}
}

func TestValidate_RejectsBadBands(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Selection.ClipMinSeconds = 100
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted clip band")
	}

	cfg = Default()
	cfg.Chunking.MinSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero chunk min")
	}
}

func TestParseResolution(t *testing.T) {
	t.Parallel()

	w, h, err := ParseResolution("1080x1920")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if w != 1080 || h != 1920 {
		t.Fatalf("got %dx%d", w, h)
	}
	if _, _, err := ParseResolution("vertical"); err == nil {
		t.Fatal("expected error for malformed resolution")
	}
}
