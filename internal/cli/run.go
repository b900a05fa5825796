package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/reelcut/reelcut/internal/config"
	"github.com/reelcut/reelcut/internal/pipeline"
	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/transcript"
	"github.com/reelcut/reelcut/internal/types"
)

func runAnalyze(cmd *cobra.Command, transcriptPath, mediaPath string) error {
	outDir, _ := cmd.Flags().GetString("out")
	cfgPath, _ := cmd.Flags().GetString("config")
	format, _ := cmd.Flags().GetString("format")
	clips, _ := cmd.Flags().GetInt("clips")
	guest, _ := cmd.Flags().GetString("guest")
	topic, _ := cmd.Flags().GetString("topic")
	tone, _ := cmd.Flags().GetString("tone")
	planOnly, _ := cmd.Flags().GetBool("plan-only")

	app, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if clips > 0 {
		app.Selection.TopK = clips
	}
	trFormat, err := parseFormat(format)
	if err != nil {
		return err
	}

	absTranscript, err := filepath.Abs(transcriptPath)
	if err != nil {
		return err
	}
	absMedia, err := filepath.Abs(mediaPath)
	if err != nil {
		return err
	}

	cfg := pipeline.Config{
		TranscriptPath:   absTranscript,
		MediaPath:        absMedia,
		Format:           trFormat,
		OutDir:           outDir,
		Hints:            ports.Hints{Guest: guest, Topic: topic, Tone: tone},
		RenderClips:      !planOnly,
		Logf:             logf(cmd),
		App:              app,
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Hour)
	defer cancel()

	res, runDir, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	printManifest(cmd, res.Manifest, runDir)
	return nil
}

func runRerender(cmd *cobra.Command, documentPath string) error {
	outDir, _ := cmd.Flags().GetString("out")
	cfgPath, _ := cmd.Flags().GetString("config")

	app, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	absDoc, err := filepath.Abs(documentPath)
	if err != nil {
		return err
	}
	cfg := pipeline.RerenderConfig{
		DocumentPath: absDoc,
		OutDir:       outDir,
		Logf:         logf(cmd),
		App:          app,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
	defer cancel()

	res, err := pipeline.Rerender(ctx, cfg)
	if err != nil {
		return err
	}
	cmd.Printf("re-rendered %s -> %s\n", res.Doc.ClipID, res.File)
	return nil
}

// printManifest renders the ranked clip table plus any warnings.
func printManifest(cmd *cobra.Command, m types.Manifest, runDir string) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"#", "Clip", "Score", "Start", "Duration", "Hook", "File"})
	for i, c := range m.Clips {
		file := c.File
		if c.Error != "" {
			file = "FAILED"
		}
		t.AppendRow(table.Row{
			i + 1,
			c.ClipID,
			fmt.Sprintf("%.2f", c.ViralScore),
			fmtClock(c.StartSec),
			fmtClock(c.EndSec - c.StartSec),
			truncate(c.Hook, 40),
			file,
		})
	}
	t.Render()

	for _, c := range m.Clips {
		if c.Error != "" {
			cmd.PrintErrf("clip %s: %s\n", c.ClipID, c.Error)
		}
	}
	if len(m.Warnings) > 0 {
		cmd.PrintErrf("%d warning(s); see %s\n", len(m.Warnings), filepath.Join(runDir, "manifest.json"))
	}
	cmd.Printf("run %s: %d clip(s) in %s\n", m.RunID, len(m.Clips), runDir)
}

func parseFormat(s string) (transcript.Format, error) {
	switch s {
	case "":
		return transcript.FormatAuto, nil
	case "txt":
		return transcript.FormatPlain, nil
	case "srt":
		return transcript.FormatSRT, nil
	case "vtt":
		return transcript.FormatVTT, nil
	default:
		return transcript.FormatAuto, fmt.Errorf("unknown transcript format %q (want txt, srt, or vtt)", s)
	}
}

func fmtClock(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func logf(cmd *cobra.Command) func(string, ...any) {
	return func(format string, args ...any) {
		cmd.PrintErrf(format+"\n", args...)
	}
}
