// Package pipeline is the composition root: it validates configuration,
// wires the adapters to the usecase, and lays out the per-run output
// directory.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/reelcut/reelcut/internal/config"
	"github.com/reelcut/reelcut/internal/domain/analyze"
	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/ports/adapters/ffmpeg"
	"github.com/reelcut/reelcut/internal/ports/adapters/openrouter"
	"github.com/reelcut/reelcut/internal/ports/adapters/pigo"
	"github.com/reelcut/reelcut/internal/transcript"
	"github.com/reelcut/reelcut/internal/usecase"
)

type Config struct {
	TranscriptPath string
	MediaPath      string
	Format         transcript.Format
	OutDir         string
	Hints          ports.Hints
	RenderClips    bool
	Logf           func(format string, args ...any)

	App config.Config

	OpenRouterAPIKey       string
	OpenRouterAllowedHosts []string
}

func (c Config) Validate() error {
	if c.TranscriptPath == "" {
		return errors.New("transcript path is empty")
	}
	if _, err := os.Stat(c.TranscriptPath); err != nil {
		return fmt.Errorf("stat transcript: %w", err)
	}
	if c.MediaPath == "" {
		return errors.New("media path is empty")
	}
	if _, err := os.Stat(c.MediaPath); err != nil {
		return fmt.Errorf("stat media: %w", err)
	}
	if c.OpenRouterAPIKey == "" {
		return errors.New("OPENROUTER_API_KEY is required (set it in .env)")
	}
	if err := c.App.Validate(); err != nil {
		return err
	}
	return openrouter.ValidateEndpoint(c.App.Oracle.BaseURL, c.OpenRouterAllowedHosts)
}

// Run executes one analysis over a transcript/media pair. It returns the run
// result together with the run's output directory.
func Run(ctx context.Context, cfg Config) (usecase.AnalyzeResult, string, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	app := cfg.App

	video := ffmpeg.New(app.Render.FFmpegPath, app.Render.FFprobePath, app.Render.Preset, app.Render.CRF)
	oracle := openrouter.New(openrouter.Options{
		APIKey:      cfg.OpenRouterAPIKey,
		Model:       app.Oracle.Model,
		BaseURL:     app.Oracle.BaseURL,
		MaxAttempts: app.Oracle.MaxAttempts,
		BackoffBase: app.OracleBackoffBase(),
		BackoffMax:  app.OracleBackoffMax(),
		Timeout:     app.OracleTimeout(),
		Logf:        logf,
	})

	// The face cascade is optional: without it every clip uses the static
	// centered crop.
	var faces ports.FaceDetector
	if det, err := pigo.Load(app.Tracker.CascadeFile); err != nil {
		logf("face cascade unavailable (%v); falling back to centered crops", err)
	} else {
		faces = det
	}

	status := analyze.NewStatus()
	status.Observe(func(s analyze.Snapshot) {
		if s.FailureReason != "" {
			logf("stage %s failed: %s", s.Stage, s.FailureReason)
			return
		}
		logf("stage: %s", s.Stage)
	})

	outRoot := cfg.OutDir
	if outRoot == "" {
		outRoot = "out"
	}
	runDir := buildRunOutDir(outRoot, cfg.MediaPath, time.Now().UTC())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return usecase.AnalyzeResult{}, "", err
	}
	logf("output run dir: %s", runDir)

	uc := usecase.New(usecase.Deps{
		Video:  video,
		Oracle: oracle,
		Faces:  faces,
		Cfg:    app,
		Logf:   logf,
		Status: status,
	})
	res, err := uc.Analyze(ctx, usecase.AnalyzeInput{
		TranscriptPath: cfg.TranscriptPath,
		MediaPath:      cfg.MediaPath,
		Format:         cfg.Format,
		OutDir:         runDir,
		Hints:          cfg.Hints,
		RenderClips:    cfg.RenderClips,
	})
	if err != nil {
		return res, runDir, err
	}
	logf("manifest written (%d clips): %s", len(res.Manifest.Clips), filepath.Join(runDir, "manifest.json"))
	return res, runDir, nil
}

type RerenderConfig struct {
	DocumentPath string
	OutDir       string
	Logf         func(format string, args ...any)

	App config.Config
}

func (c RerenderConfig) Validate() error {
	if c.DocumentPath == "" {
		return errors.New("document path is empty")
	}
	if _, err := os.Stat(c.DocumentPath); err != nil {
		return fmt.Errorf("stat document: %w", err)
	}
	return c.App.Validate()
}

// Rerender re-executes one clip from its stored document. No oracle and no
// tracker are involved, so no API key is needed.
func Rerender(ctx context.Context, cfg RerenderConfig) (usecase.RerenderResult, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	app := cfg.App
	video := ffmpeg.New(app.Render.FFmpegPath, app.Render.FFprobePath, app.Render.Preset, app.Render.CRF)
	uc := usecase.New(usecase.Deps{Video: video, Cfg: app, Logf: logf})
	return uc.Rerender(ctx, usecase.RerenderInput{DocumentPath: cfg.DocumentPath, OutDir: cfg.OutDir})
}

func buildRunOutDir(outRoot, mediaPath string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", mediaPath, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
