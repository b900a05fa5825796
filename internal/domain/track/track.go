// Package track turns the raw, noisy subject trajectory into a stable
// crop-center path: low-confidence gaps are bridged without jumps and the
// center never moves faster than the configured velocity.
package track

import (
	"math"

	"github.com/reelcut/reelcut/internal/types"
)

// emaAlpha is the low-pass weight applied before the hard velocity clamp.
const emaAlpha = 0.35

// Path is a continuous-in-frame-index crop-center path over the sampled
// range of a clip. Non-sampled frames interpolate linearly between the
// nearest smoothed samples.
type Path struct {
	samples []types.TrajectorySample
}

func (p Path) Samples() []types.TrajectorySample { return p.samples }

// At returns the crop center for any source frame, clamping outside the
// sampled range to the path ends.
func (p Path) At(frame int) (float64, float64) {
	s := p.samples
	if len(s) == 0 {
		return 0, 0
	}
	if frame <= s[0].Frame {
		return s[0].CenterX, s[0].CenterY
	}
	last := s[len(s)-1]
	if frame >= last.Frame {
		return last.CenterX, last.CenterY
	}
	// Samples are ordered by frame; find the bracketing pair.
	for i := 1; i < len(s); i++ {
		if frame <= s[i].Frame {
			a, b := s[i-1], s[i]
			t := float64(frame-a.Frame) / float64(b.Frame-a.Frame)
			return a.CenterX + t*(b.CenterX-a.CenterX), a.CenterY + t*(b.CenterY-a.CenterY)
		}
	}
	return last.CenterX, last.CenterY
}

// Static returns a constant centered path spanning [fromFrame, toFrame].
func Static(srcW, srcH, fromFrame, toFrame int) Path {
	cx, cy := float64(srcW)/2, float64(srcH)/2
	return Path{samples: []types.TrajectorySample{
		{Frame: fromFrame, CenterX: cx, CenterY: cy, Confidence: 1},
		{Frame: toFrame, CenterX: cx, CenterY: cy, Confidence: 1},
	}}
}

// Smooth builds the crop-center path from a raw trajectory. The second
// return value reports the static-centered fallback: it is true when no
// sample reached the confidence floor, i.e. no subject was ever detected.
func Smooth(raw types.Trajectory, srcW, srcH, fps int, maxVelocity, floor float64) (Path, bool) {
	samples := raw.Samples
	if len(samples) == 0 {
		return Static(srcW, srcH, 0, 0), true
	}
	if !anyConfident(samples, floor) {
		return Static(srcW, srcH, samples[0].Frame, samples[len(samples)-1].Frame), true
	}

	filled := fillGaps(samples, floor)

	out := make([]types.TrajectorySample, len(filled))
	out[0] = filled[0]
	for i := 1; i < len(filled); i++ {
		prev := out[i-1]
		cur := filled[i]

		// Low-pass toward the (gap-filled) target, re-anchoring is implicit:
		// confident samples pull the filter straight at their real center.
		x := prev.CenterX + emaAlpha*(cur.CenterX-prev.CenterX)
		y := prev.CenterY + emaAlpha*(cur.CenterY-prev.CenterY)

		// Hard bound: the center may not move faster than maxVelocity.
		dt := float64(cur.Frame-prev.Frame) / float64(fps)
		if dt > 0 {
			maxStep := maxVelocity * dt
			dx, dy := x-prev.CenterX, y-prev.CenterY
			if dist := math.Hypot(dx, dy); dist > maxStep {
				scale := maxStep / dist
				x = prev.CenterX + dx*scale
				y = prev.CenterY + dy*scale
			}
		}
		out[i] = types.TrajectorySample{Frame: cur.Frame, CenterX: x, CenterY: y, Confidence: cur.Confidence}
	}
	return Path{samples: out}, false
}

func anyConfident(samples []types.TrajectorySample, floor float64) bool {
	for _, s := range samples {
		if s.Confidence >= floor {
			return true
		}
	}
	return false
}

// fillGaps replaces low-confidence centers: before the first confident
// sample the first confident center is held, after the last one the last is
// held, and inside a gap the previous confident center blends linearly
// toward the next one.
func fillGaps(samples []types.TrajectorySample, floor float64) []types.TrajectorySample {
	out := make([]types.TrajectorySample, len(samples))
	copy(out, samples)

	var anchors []int
	for i, s := range samples {
		if s.Confidence >= floor {
			anchors = append(anchors, i)
		}
	}

	first, last := anchors[0], anchors[len(anchors)-1]
	for i := 0; i < first; i++ {
		out[i].CenterX = samples[first].CenterX
		out[i].CenterY = samples[first].CenterY
	}
	for i := last + 1; i < len(out); i++ {
		out[i].CenterX = samples[last].CenterX
		out[i].CenterY = samples[last].CenterY
	}
	for a := 0; a+1 < len(anchors); a++ {
		lo, hi := anchors[a], anchors[a+1]
		for i := lo + 1; i < hi; i++ {
			t := float64(samples[i].Frame-samples[lo].Frame) / float64(samples[hi].Frame-samples[lo].Frame)
			out[i].CenterX = samples[lo].CenterX + t*(samples[hi].CenterX-samples[lo].CenterX)
			out[i].CenterY = samples[lo].CenterY + t*(samples[hi].CenterY-samples[lo].CenterY)
		}
	}
	return out
}

// PathDoc converts a path to its document form for the exported clip
// artifact.
func PathDoc(p Path) []types.CropPathDoc {
	out := make([]types.CropPathDoc, 0, len(p.samples))
	for _, s := range p.samples {
		out = append(out, types.CropPathDoc{Frame: s.Frame, CenterX: s.CenterX, CenterY: s.CenterY})
	}
	return out
}

// PathFromDoc rebuilds a path from a stored clip document, letting a
// re-render skip the tracker entirely.
func PathFromDoc(doc []types.CropPathDoc) Path {
	samples := make([]types.TrajectorySample, 0, len(doc))
	for _, d := range doc {
		samples = append(samples, types.TrajectorySample{Frame: d.Frame, CenterX: d.CenterX, CenterY: d.CenterY, Confidence: 1})
	}
	return Path{samples: samples}
}
