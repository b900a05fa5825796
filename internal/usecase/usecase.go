// Package usecase wires the analyze and rerender operations: transcript in,
// ranked clip documents and rendered verticals out.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/reelcut/reelcut/internal/config"
	"github.com/reelcut/reelcut/internal/domain/analyze"
	"github.com/reelcut/reelcut/internal/domain/compose"
	"github.com/reelcut/reelcut/internal/domain/subtitles"
	"github.com/reelcut/reelcut/internal/domain/track"
	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/render"
	"github.com/reelcut/reelcut/internal/transcript"
	"github.com/reelcut/reelcut/internal/types"
)

type Deps struct {
	Video  ports.VideoTool
	Oracle ports.Oracle
	Faces  ports.FaceDetector
	Cfg    config.Config
	Logf   func(format string, args ...any)
	Status *analyze.Status
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}
	return Usecase{d: d}
}

type AnalyzeInput struct {
	TranscriptPath string
	MediaPath      string
	Format         transcript.Format
	OutDir         string
	Hints          ports.Hints
	RenderClips    bool
}

type AnalyzeResult struct {
	Manifest types.Manifest
	Docs     []types.ClipDocument
}

// Analyze runs the full pipeline over one episode: parse, chunk, score,
// refine, package, track, and render. Per-clip failures are recorded in the
// manifest; only input and scoring-transport failures abort the run.
func (u Usecase) Analyze(ctx context.Context, in AnalyzeInput) (AnalyzeResult, error) {
	cfg := u.d.Cfg

	data, err := os.ReadFile(in.TranscriptPath)
	if err != nil {
		return AnalyzeResult{}, &types.InputError{Msg: fmt.Sprintf("read transcript %s: %v", in.TranscriptPath, err)}
	}
	utts, err := transcript.Parse(string(data), in.Format)
	if err != nil {
		return AnalyzeResult{}, err
	}
	utts = transcript.MergeBySpeaker(utts, time.Duration(cfg.Chunking.MergeGapSeconds*float64(time.Second)))
	u.d.Logf("transcript: %d utterances after merge", len(utts))

	info, err := u.d.Video.Probe(ctx, in.MediaPath)
	if err != nil {
		return AnalyzeResult{}, &types.InputError{Msg: fmt.Sprintf("probe %s: %v", in.MediaPath, err)}
	}

	pipe := &analyze.Pipeline{
		Oracle: u.d.Oracle,
		Cfg: analyze.Config{
			ChunkMin: types.FromSeconds(cfg.Chunking.MinSeconds),
			ChunkMax: types.FromSeconds(cfg.Chunking.MaxSeconds),
			TopK:     cfg.Selection.TopK,
			ClipMin:  types.FromSeconds(cfg.Selection.ClipMinSeconds),
			ClipMax:  types.FromSeconds(cfg.Selection.ClipMaxSeconds),
			Pad:      types.FromSeconds(cfg.Selection.PadSeconds),
			Assembly: assemblySpec(cfg.Assembly),
		},
		Logf:   u.d.Logf,
		Status: u.d.Status,
	}
	res, err := pipe.Run(ctx, utts, in.Hints)
	if err != nil {
		return AnalyzeResult{}, err
	}

	if err := os.MkdirAll(in.OutDir, 0o755); err != nil {
		return AnalyzeResult{}, fmt.Errorf("create output dir: %w", err)
	}

	pool := render.NewPool(render.Options{
		Video:           u.d.Video,
		Faces:           u.d.Faces,
		Workers:         cfg.Render.Workers,
		Stride:          cfg.Tracker.Stride,
		ConfidenceFloor: cfg.Tracker.ConfidenceFloor,
		MaxVelocity:     cfg.Smoother.MaxVelocityPxPerSec,
		BurnCaptions:    cfg.Render.BurnCaptions,
		MaxAttempts:     cfg.Render.MaxAttempts,
		OutDir:          in.OutDir,
		SkipEncode:      !in.RenderClips,
		Logf:            u.d.Logf,
	})
	outcomes := pool.Render(ctx, in.MediaPath, info, res.Clips)

	manifest := types.Manifest{Input: in.MediaPath, RunID: uuid.NewString()}
	for _, w := range res.Warnings {
		manifest.Warnings = append(manifest.Warnings, w.Error())
	}

	out := AnalyzeResult{}
	for _, oc := range outcomes {
		doc := buildDocument(oc, in.MediaPath, info)
		docPath := filepath.Join(in.OutDir, oc.Pkg.Clip.ID+".json")
		if err := writeJSON(docPath, doc); err != nil {
			return out, err
		}
		out.Docs = append(out.Docs, doc)

		mc := types.ManifestClip{
			ClipID:     doc.ClipID,
			StartSec:   doc.RefStart,
			EndSec:     doc.RefEnd,
			ViralScore: doc.ViralScore,
			Hook:       doc.Hook,
			Document:   filepath.Base(docPath),
			File:       relBase(doc.File),
			Subtitles:  relBase(doc.Subtitles),
		}
		for _, w := range oc.Warnings {
			manifest.Warnings = append(manifest.Warnings, w.Error())
		}
		if oc.Err != nil {
			mc.Error = oc.Err.Error()
		}
		manifest.Clips = append(manifest.Clips, mc)
	}
	if err := writeJSON(filepath.Join(in.OutDir, "manifest.json"), manifest); err != nil {
		return out, err
	}
	out.Manifest = manifest
	return out, nil
}

type RerenderInput struct {
	DocumentPath string
	OutDir       string
}

type RerenderResult struct {
	File      string
	Subtitles string
	Doc       types.ClipDocument
}

// Rerender rebuilds and re-executes one clip's plan from its stored document
// after a caption edit. The crop path is taken from the document, so the
// tracker never reruns and the crop geometry cannot drift.
func (u Usecase) Rerender(ctx context.Context, in RerenderInput) (RerenderResult, error) {
	data, err := os.ReadFile(in.DocumentPath)
	if err != nil {
		return RerenderResult{}, &types.InputError{Msg: fmt.Sprintf("read document %s: %v", in.DocumentPath, err)}
	}
	var doc types.ClipDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return RerenderResult{}, &types.InputError{Msg: fmt.Sprintf("parse document %s: %v", in.DocumentPath, err)}
	}
	if len(doc.CropPath) == 0 {
		return RerenderResult{}, &types.InputError{Msg: "document has no crop path; run analyze first"}
	}

	outDir := in.OutDir
	if outDir == "" {
		outDir = filepath.Dir(in.DocumentPath)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return RerenderResult{}, fmt.Errorf("create output dir: %w", err)
	}

	clip := types.Clip{
		ID:           doc.ClipID,
		ChunkID:      doc.ChunkID,
		Start:        types.FromSeconds(doc.StartSec),
		End:          types.FromSeconds(doc.EndSec),
		RefinedStart: types.FromSeconds(doc.RefStart),
		RefinedEnd:   types.FromSeconds(doc.RefEnd),
		ViralScore:   doc.ViralScore,
		Reasoning:    doc.Reasoning,
	}
	caps := analyze.NormalizeCaptions(types.CaptionsFromDoc(doc.Captions), clip.RefinedDuration())
	spec := types.AssemblyFromDoc(doc.Assembly)
	targetW, targetH, err := config.ParseResolution(spec.Resolution)
	if err != nil {
		return RerenderResult{}, &types.InputError{Msg: fmt.Sprintf("document assembly: %v", err)}
	}

	burn := u.d.Cfg.Render.BurnCaptions
	plan := compose.Plan(compose.Input{
		Clip:         clip,
		Path:         track.PathFromDoc(doc.CropPath),
		Source:       doc.Source,
		SourceW:      doc.SourceWidth,
		SourceH:      doc.SourceHeight,
		FPS:          doc.SourceFPS,
		TargetW:      targetW,
		TargetH:      targetH,
		Spec:         spec,
		Captions:     caps,
		BurnCaptions: burn,
	})

	var subPath string
	if len(caps) > 0 {
		var content string
		if burn {
			subPath = filepath.Join(outDir, clip.ID+".ass")
			content = subtitles.RenderASS(caps)
		} else {
			subPath = filepath.Join(outDir, clip.ID+".srt")
			content = subtitles.RenderSRT(caps)
		}
		if err := os.WriteFile(subPath, []byte(content), 0o644); err != nil {
			return RerenderResult{}, fmt.Errorf("write subtitles: %w", err)
		}
	}

	outPath := filepath.Join(outDir, clip.ID+".mp4")
	var lastErr error
	for attempt := 1; attempt <= u.d.Cfg.Render.MaxAttempts; attempt++ {
		lastErr = u.d.Video.Execute(ctx, plan, subPath, outPath)
		if lastErr == nil {
			break
		}
		u.d.Logf("rerender %s: attempt %d failed: %v", clip.ID, attempt, lastErr)
	}
	if lastErr != nil {
		return RerenderResult{}, &types.RenderError{
			ClipID:   clip.ID,
			Frames:   types.FrameRange{From: plan.Entries[0].Frames.From, To: plan.Entries[len(plan.Entries)-1].Frames.To},
			Attempts: u.d.Cfg.Render.MaxAttempts,
			Err:      lastErr,
		}
	}

	doc.Captions = types.CaptionsToDoc(caps)
	doc.File = filepath.Base(outPath)
	doc.Subtitles = relBase(subPath)
	if err := writeJSON(in.DocumentPath, doc); err != nil {
		return RerenderResult{}, err
	}
	return RerenderResult{File: outPath, Subtitles: subPath, Doc: doc}, nil
}

func buildDocument(oc render.Outcome, source string, info ports.MediaInfo) types.ClipDocument {
	pkg := oc.Pkg
	clip := pkg.Clip
	doc := types.ClipDocument{
		ClipID:      clip.ID,
		ChunkID:     clip.ChunkID,
		Source:      source,
		StartSec:    types.Seconds(clip.Start),
		EndSec:      types.Seconds(clip.End),
		RefStart:    types.Seconds(clip.RefinedStart),
		RefEnd:      types.Seconds(clip.RefinedEnd),
		RefDur:      types.Seconds(clip.RefinedDuration()),
		ViralScore:  clip.ViralScore,
		Reasoning:   clip.Reasoning,
		Hook:        pkg.Meta.Hook,
		Captions:    types.CaptionsToDoc(pkg.Captions),
		ReelCaption: pkg.Meta.ReelCaption,
		Hashtags:    pkg.Meta.Hashtags,
		Tone:        types.ToneDoc{Pacing: pkg.Meta.Tone.Pacing, MusicVibe: pkg.Meta.Tone.MusicVibe},
		Style: types.StyleDoc{
			ColorPalette: pkg.Style.ColorPalette,
			Typography:   pkg.Style.Typography,
			Composition:  pkg.Style.Composition,
		},
		Assembly:     types.AssemblyToDoc(pkg.Assembly),
		CropPath:     track.PathDoc(oc.Path),
		SourceWidth:  info.Width,
		SourceHeight: info.Height,
		SourceFPS:    info.FPS,
		File:         relBase(oc.File),
		Subtitles:    relBase(oc.Subtitles),
	}
	for _, b := range pkg.Beats {
		doc.VisualBeats = append(doc.VisualBeats, types.BeatDoc{
			ImageConcept:    b.ImageConcept,
			TextOverlay:     b.TextOverlay,
			Motion:          b.Motion,
			MotionIntensity: b.MotionIntensity,
			DurationSec:     types.Seconds(b.Duration),
		})
	}
	return doc
}

func assemblySpec(a config.Assembly) types.AssemblySpec {
	return types.AssemblySpec{
		AspectRatio:        a.AspectRatio,
		Resolution:         a.Resolution,
		FPS:                a.FPS,
		AudioFormat:        "aac",
		VideoCodec:         "h264",
		BackgroundLayer:    a.BackgroundLayer,
		AudioWaveform:      a.AudioWaveform,
		CaptionsLayer:      true,
		HookOverlay:        a.HookOverlay,
		ImageTransition:    a.ImageTransition,
		TransitionDuration: time.Duration(a.TransitionDurationSec * float64(time.Second)),
		TextAnimation:      a.TextAnimation,
	}
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func relBase(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Base(p)
}
