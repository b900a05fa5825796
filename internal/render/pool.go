package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/reelcut/reelcut/internal/domain/analyze"
	"github.com/reelcut/reelcut/internal/domain/compose"
	"github.com/reelcut/reelcut/internal/domain/subtitles"
	"github.com/reelcut/reelcut/internal/domain/track"
	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/types"
)

type Options struct {
	Video           ports.VideoTool
	Faces           ports.FaceDetector
	Workers         int
	Stride          int
	ConfidenceFloor float64
	MaxVelocity     float64
	BurnCaptions    bool
	MaxAttempts     int
	OutDir          string
	// SkipEncode builds paths, plans, and subtitle files without invoking
	// the encoder; documents stay fully usable for a later rerender.
	SkipEncode bool
	Logf       func(format string, args ...any)
}

// Pool renders clip packages concurrently. Each job is independent; one
// failed clip never blocks or fails the others.
type Pool struct {
	opts Options
}

// Outcome is everything one clip's render produced, or the error that
// stopped it. Path and Plan are populated even when Execute failed so the
// clip document can still be written.
type Outcome struct {
	Pkg       analyze.ClipPackage
	Path      track.Path
	Plan      types.RenderPlan
	File      string
	Subtitles string
	Warnings  []error
	Err       error
}

func NewPool(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Stride <= 0 {
		opts.Stride = 5
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	return &Pool{opts: opts}
}

// Render fans the packages out over the worker pool and gathers one outcome
// per package, ordered by viral score descending with earlier clips first on
// ties.
func (p *Pool) Render(ctx context.Context, source string, info ports.MediaInfo, pkgs []analyze.ClipPackage) []Outcome {
	jobs := make(chan analyze.ClipPackage)
	out := make([]Outcome, 0, len(pkgs))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pkg := range jobs {
				oc := p.renderOne(ctx, source, info, pkg)
				mu.Lock()
				out = append(out, oc)
				mu.Unlock()
			}
		}()
	}

	for _, pkg := range pkgs {
		select {
		case <-ctx.Done():
			// Never hand the package to a worker, but still account for it:
			// the manifest must list every clip, skipped ones with an error.
			mu.Lock()
			out = append(out, Outcome{Pkg: pkg, Err: ctx.Err()})
			mu.Unlock()
		case jobs <- pkg:
		}
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Pkg.Clip, out[j].Pkg.Clip
		if a.ViralScore != b.ViralScore {
			return a.ViralScore > b.ViralScore
		}
		return a.RefinedStart < b.RefinedStart
	})
	return out
}

func (p *Pool) renderOne(ctx context.Context, source string, info ports.MediaInfo, pkg analyze.ClipPackage) Outcome {
	oc := Outcome{Pkg: pkg}
	clip := pkg.Clip

	path, warns := p.trackClip(ctx, source, info, clip)
	oc.Path = path
	oc.Warnings = warns

	targetW, targetH := targetSize(pkg.Assembly)
	oc.Plan = compose.Plan(compose.Input{
		Clip:         clip,
		Path:         path,
		Source:       source,
		SourceW:      info.Width,
		SourceH:      info.Height,
		FPS:          info.FPS,
		TargetW:      targetW,
		TargetH:      targetH,
		Spec:         pkg.Assembly,
		Captions:     pkg.Captions,
		BurnCaptions: p.opts.BurnCaptions,
	})

	subPath, err := p.writeSubtitles(clip.ID, pkg.Captions)
	if err != nil {
		oc.Err = err
		return oc
	}
	oc.Subtitles = subPath

	if p.opts.SkipEncode {
		return oc
	}

	outPath := filepath.Join(p.opts.OutDir, clip.ID+".mp4")
	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		lastErr = p.opts.Video.Execute(ctx, oc.Plan, subPath, outPath)
		if lastErr == nil {
			oc.File = outPath
			p.opts.Logf("render %s: done (attempt %d)", clip.ID, attempt)
			return oc
		}
		p.opts.Logf("render %s: attempt %d failed: %v", clip.ID, attempt, lastErr)
	}
	oc.Err = &types.RenderError{
		ClipID:   clip.ID,
		Frames:   planRange(oc.Plan),
		Attempts: p.opts.MaxAttempts,
		Err:      lastErr,
	}
	return oc
}

// trackClip builds the smoothed crop path, degrading to the static centered
// path when the detector is absent, tracking fails, or no subject was found.
func (p *Pool) trackClip(ctx context.Context, source string, info ports.MediaInfo, clip types.Clip) (track.Path, []error) {
	startFrame := frameAt(clip.RefinedStart, info.FPS)
	endFrame := frameAt(clip.RefinedEnd, info.FPS)

	if p.opts.Faces == nil {
		return track.Static(info.Width, info.Height, startFrame, endFrame), nil
	}

	raw, err := Track(ctx, p.opts.Video, p.opts.Faces, source, clip.RefinedStart, clip.RefinedEnd, p.opts.Stride)
	if err != nil {
		return track.Static(info.Width, info.Height, startFrame, endFrame),
			[]error{fmt.Errorf("tracking %s: %w", clip.ID, err)}
	}
	path, fellBack := track.Smooth(raw, info.Width, info.Height, info.FPS, p.opts.MaxVelocity, p.opts.ConfidenceFloor)
	if fellBack {
		return track.Static(info.Width, info.Height, startFrame, endFrame),
			[]error{&types.TrackingError{ClipID: clip.ID}}
	}
	return path, nil
}

func (p *Pool) writeSubtitles(clipID string, caps []types.Caption) (string, error) {
	if len(caps) == 0 {
		return "", nil
	}
	var path, content string
	if p.opts.BurnCaptions {
		path = filepath.Join(p.opts.OutDir, clipID+".ass")
		content = subtitles.RenderASS(caps)
	} else {
		path = filepath.Join(p.opts.OutDir, clipID+".srt")
		content = subtitles.RenderSRT(caps)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write subtitles for %s: %w", clipID, err)
	}
	return path, nil
}

func targetSize(spec types.AssemblySpec) (int, int) {
	var w, h int
	if _, err := fmt.Sscanf(spec.Resolution, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 1080, 1920
	}
	return w, h
}

func frameAt(d time.Duration, fps int) int {
	return int(types.Seconds(d)*float64(fps) + 0.5)
}

func planRange(plan types.RenderPlan) types.FrameRange {
	if len(plan.Entries) == 0 {
		return types.FrameRange{}
	}
	return types.FrameRange{
		From: plan.Entries[0].Frames.From,
		To:   plan.Entries[len(plan.Entries)-1].Frames.To,
	}
}
