// Package render runs the per-clip production line: subject tracking, path
// smoothing, plan composition, and external rendering, fanned out over a
// bounded worker pool.
package render

import (
	"context"
	"math"
	"time"

	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/types"
)

// Detections within this size ratio of the largest are treated as equally
// large; continuity with the previous center breaks the tie.
const sizeTieRatio = 0.8

// Track samples the clip's frames and detects the subject in each. Frames
// with no usable detection still produce a sample, flagged with confidence
// zero, so the smoother sees the full timeline.
func Track(ctx context.Context, video ports.VideoTool, faces ports.FaceDetector, source string, start, end time.Duration, stride int) (types.Trajectory, error) {
	traj := types.Trajectory{Stride: stride}
	var prevX, prevY float64
	havePrev := false

	err := video.SampleFrames(ctx, source, start, end, stride, func(f ports.Frame) error {
		sample := types.TrajectorySample{Frame: f.Index}
		det := pickDetection(faces.Detect(f), prevX, prevY, havePrev)
		if det == nil {
			// Hold the last known center; the smoother blends through the gap.
			if havePrev {
				sample.CenterX, sample.CenterY = prevX, prevY
			} else {
				sample.CenterX, sample.CenterY = float64(f.Width)/2, float64(f.Height)/2
			}
			sample.Confidence = 0
		} else {
			sample.CenterX, sample.CenterY = det.CenterX, det.CenterY
			sample.Confidence = det.Confidence
			prevX, prevY = det.CenterX, det.CenterY
			havePrev = true
		}
		traj.Samples = append(traj.Samples, sample)
		return nil
	})
	if err != nil {
		return types.Trajectory{}, err
	}
	return traj, nil
}

// pickDetection prefers the largest face; among comparably large faces it
// prefers the one closest to the previous center so the crop does not ping
// between speakers.
func pickDetection(dets []ports.Detection, prevX, prevY float64, havePrev bool) *ports.Detection {
	var best *ports.Detection
	var maxSize float64
	for i := range dets {
		if dets[i].Size > maxSize {
			maxSize = dets[i].Size
		}
	}
	for i := range dets {
		d := &dets[i]
		if d.Size < maxSize*sizeTieRatio {
			continue
		}
		if best == nil {
			best = d
			continue
		}
		if havePrev {
			if dist(d, prevX, prevY) < dist(best, prevX, prevY) {
				best = d
			}
		} else if d.Size > best.Size {
			best = d
		}
	}
	return best
}

func dist(d *ports.Detection, x, y float64) float64 {
	return math.Hypot(d.CenterX-x, d.CenterY-y)
}
