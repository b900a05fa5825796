// Package config loads and validates the optional TOML configuration file.
// Zero values are filled from defaults so a missing file is a valid config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Chunking struct {
	MinSeconds      float64 `toml:"min_seconds"`
	MaxSeconds      float64 `toml:"max_seconds"`
	MergeGapSeconds float64 `toml:"merge_gap_seconds"`
}

type Selection struct {
	TopK           int     `toml:"top_k"`
	ClipMinSeconds float64 `toml:"clip_min_seconds"`
	ClipMaxSeconds float64 `toml:"clip_max_seconds"`
	PadSeconds     float64 `toml:"pad_seconds"`
}

type Oracle struct {
	Model         string  `toml:"model"`
	BaseURL       string  `toml:"base_url"`
	MaxAttempts   int     `toml:"max_attempts"`
	BackoffBaseMS int     `toml:"backoff_base_ms"`
	BackoffMaxMS  int     `toml:"backoff_max_ms"`
	TimeoutSec    float64 `toml:"timeout_seconds"`
}

type Tracker struct {
	Stride          int     `toml:"stride"`
	ConfidenceFloor float64 `toml:"confidence_floor"`
	CascadeFile     string  `toml:"cascade_file"`
}

type Smoother struct {
	MaxVelocityPxPerSec float64 `toml:"max_velocity_px_per_sec"`
}

type Render struct {
	Workers      int    `toml:"workers"`
	BurnCaptions bool   `toml:"burn_captions"`
	FFmpegPath   string `toml:"ffmpeg_path"`
	FFprobePath  string `toml:"ffprobe_path"`
	MaxAttempts  int    `toml:"max_attempts"`
	Preset       string `toml:"preset"`
	CRF          int    `toml:"crf"`
}

type Assembly struct {
	AspectRatio           string  `toml:"aspect_ratio"`
	Resolution            string  `toml:"resolution"`
	FPS                   int     `toml:"fps"`
	BackgroundLayer       string  `toml:"background_layer"`
	ImageTransition       string  `toml:"image_transition"`
	TransitionDurationSec float64 `toml:"transition_duration"`
	TextAnimation         string  `toml:"text_animation"`
	Composition           string  `toml:"composition"`
	AudioWaveform         bool    `toml:"audio_waveform"`
	HookOverlay           bool    `toml:"hook_overlay"`
}

type Config struct {
	Chunking  Chunking  `toml:"chunking"`
	Selection Selection `toml:"selection"`
	Oracle    Oracle    `toml:"oracle"`
	Tracker   Tracker   `toml:"tracker"`
	Smoother  Smoother  `toml:"smoother"`
	Render    Render    `toml:"render"`
	Assembly  Assembly  `toml:"assembly"`
}

func Default() Config {
	return Config{
		Chunking: Chunking{
			MinSeconds:      30,
			MaxSeconds:      90,
			MergeGapSeconds: 2,
		},
		Selection: Selection{
			TopK:           5,
			ClipMinSeconds: 15,
			ClipMaxSeconds: 90,
			PadSeconds:     2,
		},
		Oracle: Oracle{
			Model:         "anthropic/claude-3.5-sonnet",
			BaseURL:       "https://openrouter.ai",
			MaxAttempts:   4,
			BackoffBaseMS: 500,
			BackoffMaxMS:  30000,
			TimeoutSec:    90,
		},
		Tracker: Tracker{
			Stride:          5,
			ConfidenceFloor: 0.3,
			CascadeFile:     ".cache/models/facefinder",
		},
		Smoother: Smoother{
			MaxVelocityPxPerSec: 400,
		},
		Render: Render{
			Workers:      defaultWorkers(),
			BurnCaptions: true,
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
			MaxAttempts:  2,
			Preset:       "veryfast",
			CRF:          18,
		},
		Assembly: Assembly{
			AspectRatio:           "9:16",
			Resolution:            "1080x1920",
			FPS:                   30,
			BackgroundLayer:       "solid-color",
			ImageTransition:       "cut",
			TransitionDurationSec: 0.5,
			TextAnimation:         "fade-in",
			Composition:           "centered",
		},
	}
}

// Load reads path when it exists and overlays it onto defaults. An absent
// file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Legal enumerations for the assembly envelope.
var (
	legalAspectRatios   = []string{"9:16"}
	legalBackgrounds    = []string{"image", "gradient", "solid-color"}
	legalTransitions    = []string{"cross-dissolve", "cut"}
	legalTextAnimations = []string{"fade-in", "slide-up", "typewriter"}
	legalCompositions   = []string{"rule-of-thirds", "centered", "lower-third"}
)

func (c Config) Validate() error {
	if c.Chunking.MinSeconds <= 0 || c.Chunking.MaxSeconds <= c.Chunking.MinSeconds {
		return fmt.Errorf("chunking: need 0 < min_seconds < max_seconds, got %v/%v",
			c.Chunking.MinSeconds, c.Chunking.MaxSeconds)
	}
	if c.Selection.TopK <= 0 {
		return errors.New("selection: top_k must be > 0")
	}
	if c.Selection.ClipMinSeconds <= 0 || c.Selection.ClipMaxSeconds <= c.Selection.ClipMinSeconds {
		return fmt.Errorf("selection: need 0 < clip_min_seconds < clip_max_seconds, got %v/%v",
			c.Selection.ClipMinSeconds, c.Selection.ClipMaxSeconds)
	}
	if c.Selection.PadSeconds < 0 {
		return errors.New("selection: pad_seconds must be >= 0")
	}
	if c.Oracle.MaxAttempts <= 0 {
		return errors.New("oracle: max_attempts must be > 0")
	}
	if c.Tracker.Stride <= 0 {
		return errors.New("tracker: stride must be > 0")
	}
	if c.Tracker.ConfidenceFloor < 0 || c.Tracker.ConfidenceFloor > 1 {
		return errors.New("tracker: confidence_floor must be in [0,1]")
	}
	if c.Smoother.MaxVelocityPxPerSec <= 0 {
		return errors.New("smoother: max_velocity_px_per_sec must be > 0")
	}
	if c.Render.Workers <= 0 {
		return errors.New("render: workers must be > 0")
	}
	if c.Render.MaxAttempts <= 0 {
		return errors.New("render: max_attempts must be > 0")
	}
	if c.Assembly.FPS <= 0 {
		return errors.New("assembly: fps must be > 0")
	}
	if _, _, err := ParseResolution(c.Assembly.Resolution); err != nil {
		return fmt.Errorf("assembly: %w", err)
	}
	if err := oneOf("assembly.aspect_ratio", c.Assembly.AspectRatio, legalAspectRatios); err != nil {
		return err
	}
	if err := oneOf("assembly.background_layer", c.Assembly.BackgroundLayer, legalBackgrounds); err != nil {
		return err
	}
	if err := oneOf("assembly.image_transition", c.Assembly.ImageTransition, legalTransitions); err != nil {
		return err
	}
	if err := oneOf("assembly.text_animation", c.Assembly.TextAnimation, legalTextAnimations); err != nil {
		return err
	}
	return oneOf("assembly.composition", c.Assembly.Composition, legalCompositions)
}

func oneOf(field, value string, legal []string) error {
	for _, l := range legal {
		if value == l {
			return nil
		}
	}
	return fmt.Errorf("%s: %q is not one of %s", field, value, strings.Join(legal, ", "))
}

// ParseResolution splits "1080x1920" into width and height.
func ParseResolution(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("resolution %q: want WIDTHxHEIGHT", s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("resolution %q: dimensions must be positive", s)
	}
	return w, h, nil
}

func (c Config) OracleBackoffBase() time.Duration {
	return time.Duration(c.Oracle.BackoffBaseMS) * time.Millisecond
}

func (c Config) OracleBackoffMax() time.Duration {
	return time.Duration(c.Oracle.BackoffMaxMS) * time.Millisecond
}

func (c Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSec * float64(time.Second))
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		// Render jobs are decoder-heavy; oversubscribing decoders hurts more
		// than it helps.
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}
