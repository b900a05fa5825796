// Package pigo adapts the pigo pixel-intensity cascade classifier to the
// FaceDetector port. Detection runs on the grayscale frames the video tool
// samples; no cgo and no external model runtime.
package pigo

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/reelcut/reelcut/internal/ports"
)

const (
	shiftFactor = 0.1
	scaleFactor = 1.1
	// Overlapping raw detections within this IoU are merged into one face.
	clusterOverlap = 0.2
	// Detections below this cascade quality are discarded outright; the
	// confidence mapping below normalizes the rest.
	minQuality = 5.0
)

type Detector struct {
	classifier *pigo.Pigo
}

var _ ports.FaceDetector = (*Detector)(nil)

// Load reads and unpacks a binary cascade file (the stock "facefinder"
// cascade works well for podcast framing).
func Load(cascadePath string) (*Detector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade %s: %w", cascadePath, err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade %s: %w", cascadePath, err)
	}
	return &Detector{classifier: classifier}, nil
}

// Detect finds face candidates in one frame, in source pixels. Results are
// unordered; selection policy belongs to the caller.
func (d *Detector) Detect(frame ports.Frame) []ports.Detection {
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pixels) < frame.Width*frame.Height {
		return nil
	}
	params := pigo.CascadeParams{
		MinSize:     frame.Height / 10,
		MaxSize:     frame.Height,
		ShiftFactor: shiftFactor,
		ScaleFactor: scaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: frame.Pixels,
			Rows:   frame.Height,
			Cols:   frame.Width,
			Dim:    frame.Width,
		},
	}
	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, clusterOverlap)

	out := make([]ports.Detection, 0, len(dets))
	for _, det := range dets {
		if float64(det.Q) < minQuality {
			continue
		}
		out = append(out, ports.Detection{
			CenterX:    float64(det.Col),
			CenterY:    float64(det.Row),
			Size:       float64(det.Scale),
			Confidence: confidence(float64(det.Q)),
		})
	}
	return out
}

// confidence squashes the open-ended cascade quality into [0,1]. Quality
// around the discard threshold maps near zero; 40+ saturates.
func confidence(q float64) float64 {
	c := (q - minQuality) / 35.0
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
