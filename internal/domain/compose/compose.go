// Package compose builds declarative render plans. Plan is a pure function:
// identical inputs always yield an identical plan, which is what makes
// re-render-after-edit safe.
package compose

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/reelcut/reelcut/internal/domain/track"
	"github.com/reelcut/reelcut/internal/types"
)

// cropTolerancePx: contiguous frames whose crop origin moves less than this
// are coalesced into one plan entry to keep plans compact.
const cropTolerancePx = 2

type Input struct {
	Clip         types.Clip
	Path         track.Path
	Source       string
	SourceW      int
	SourceH      int
	FPS          int
	TargetW      int
	TargetH      int
	Spec         types.AssemblySpec
	Captions     []types.Caption
	BurnCaptions bool
}

// Plan computes the crop-rectangle timeline for a clip. Crop rectangles are
// edge-clamped so they never exceed source frame bounds; the subject center
// drifts off-center near the edges instead of producing black bars.
func Plan(in Input) types.RenderPlan {
	cropW, cropH := cropSize(in.SourceW, in.SourceH, in.TargetW, in.TargetH)

	startFrame := int(math.Round(types.Seconds(in.Clip.RefinedStart) * float64(in.FPS)))
	endFrame := int(math.Round(types.Seconds(in.Clip.RefinedEnd) * float64(in.FPS)))
	if endFrame <= startFrame {
		endFrame = startFrame + 1
	}

	var entries []types.PlanEntry
	for f := startFrame; f < endFrame; f++ {
		cx, cy := in.Path.At(f)
		rect := types.CropRect{
			X: clampInt(int(math.Round(cx))-cropW/2, 0, in.SourceW-cropW),
			Y: clampInt(int(math.Round(cy))-cropH/2, 0, in.SourceH-cropH),
			W: cropW,
			H: cropH,
		}
		if n := len(entries); n > 0 && near(entries[n-1].Crop, rect) {
			entries[n-1].Frames.To = f + 1
			continue
		}
		entries = append(entries, types.PlanEntry{
			Frames: types.FrameRange{From: f, To: f + 1},
			Crop:   rect,
		})
	}

	return types.RenderPlan{
		Source:        in.Source,
		Start:         in.Clip.RefinedStart,
		End:           in.Clip.RefinedEnd,
		SourceW:       in.SourceW,
		SourceH:       in.SourceH,
		FPS:           in.FPS,
		TargetW:       in.TargetW,
		TargetH:       in.TargetH,
		Entries:       entries,
		CaptionRef:    CaptionRef(in.Captions, in.BurnCaptions),
		BurnCaptions:  in.BurnCaptions,
		TransitionRef: transitionRef(in.Spec),
	}
}

// cropSize fits the target aspect ratio inside the source frame, preferring
// full source height (the common 16:9 -> 9:16 case).
func cropSize(srcW, srcH, targetW, targetH int) (int, int) {
	w := srcH * targetW / targetH
	h := srcH
	if w > srcW {
		w = srcW
		h = srcW * targetH / targetW
		if h > srcH {
			h = srcH
		}
	}
	if w < 2 {
		w = 2
	}
	// Even dimensions keep downstream encoders happy.
	return w &^ 1, h &^ 1
}

func near(a, b types.CropRect) bool {
	return abs(a.X-b.X) <= cropTolerancePx && abs(a.Y-b.Y) <= cropTolerancePx &&
		a.W == b.W && a.H == b.H
}

// CaptionRef is a content address over the caption sequence and delivery
// mode. Editing caption text changes the ref; crop geometry is untouched.
func CaptionRef(caps []types.Caption, burn bool) string {
	if len(caps) == 0 {
		return ""
	}
	var b strings.Builder
	if burn {
		b.WriteString("burn;")
	} else {
		b.WriteString("track;")
	}
	for _, c := range caps {
		fmt.Fprintf(&b, "%d|%d|%s|%s;", c.StartOffset, c.EndOffset, c.Text, strings.Join(c.Emphasis, ","))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return "captions-" + hex.EncodeToString(sum[:])[:12]
}

func transitionRef(spec types.AssemblySpec) string {
	if spec.ImageTransition == "" || spec.ImageTransition == "cut" {
		return "cut"
	}
	return fmt.Sprintf("%s:%dms", spec.ImageTransition, spec.TransitionDuration.Milliseconds())
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
