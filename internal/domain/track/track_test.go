package track

import (
	"math"
	"testing"

	"github.com/reelcut/reelcut/internal/types"
)

func sample(frame int, x, y, conf float64) types.TrajectorySample {
	return types.TrajectorySample{Frame: frame, CenterX: x, CenterY: y, Confidence: conf}
}

func TestSmooth_VelocityBound(t *testing.T) {
	t.Parallel()

	// Subject teleports 800px between consecutive samples; the smoothed path
	// must respect the configured velocity regardless.
	const (
		fps         = 30
		stride      = 5
		maxVelocity = 400.0
	)
	var samples []types.TrajectorySample
	for i := 0; i < 40; i++ {
		x := 200.0
		if i%2 == 1 {
			x = 1000.0
		}
		samples = append(samples, sample(i*stride, x, 540, 0.9))
	}

	path, fellBack := Smooth(types.Trajectory{Stride: stride, Samples: samples}, 1920, 1080, fps, maxVelocity, 0.3)
	if fellBack {
		t.Fatal("unexpected fallback")
	}
	sm := path.Samples()
	for i := 1; i < len(sm); i++ {
		dt := float64(sm[i].Frame-sm[i-1].Frame) / fps
		dist := math.Hypot(sm[i].CenterX-sm[i-1].CenterX, sm[i].CenterY-sm[i-1].CenterY)
		if dist/dt > maxVelocity+1e-9 {
			t.Fatalf("velocity %f exceeds bound at sample %d", dist/dt, i)
		}
	}
}

func TestSmooth_GapBlending(t *testing.T) {
	t.Parallel()

	samples := []types.TrajectorySample{
		sample(0, 100, 500, 0.9),
		sample(5, 0, 0, 0.1), // lost detection
		sample(10, 0, 0, 0.05),
		sample(15, 400, 500, 0.9),
	}
	path, fellBack := Smooth(types.Trajectory{Stride: 5, Samples: samples}, 1920, 1080, 30, 1e9, 0.3)
	if fellBack {
		t.Fatal("unexpected fallback")
	}
	sm := path.Samples()
	// Gap samples must sit between the surrounding confident centers, never
	// at the bogus raw (0,0).
	for _, s := range sm[1:3] {
		if s.CenterX < 100 || s.CenterX > 400 {
			t.Fatalf("gap sample not blended: %+v", s)
		}
		if s.CenterY < 400 {
			t.Fatalf("gap sample ignored confident Y: %+v", s)
		}
	}
	// And the blend is monotone toward the next anchor.
	if sm[2].CenterX < sm[1].CenterX {
		t.Fatalf("blend not monotone: %f then %f", sm[1].CenterX, sm[2].CenterX)
	}
}

func TestSmooth_NoDetectionFallsBackToCenter(t *testing.T) {
	t.Parallel()

	samples := []types.TrajectorySample{
		sample(0, 50, 50, 0.1),
		sample(5, 60, 60, 0.2),
	}
	path, fellBack := Smooth(types.Trajectory{Stride: 5, Samples: samples}, 1920, 1080, 30, 400, 0.3)
	if !fellBack {
		t.Fatal("expected static fallback")
	}
	x, y := path.At(3)
	if x != 960 || y != 540 {
		t.Fatalf("expected source center, got (%f, %f)", x, y)
	}
}

func TestPath_AtInterpolates(t *testing.T) {
	t.Parallel()

	p := Path{samples: []types.TrajectorySample{
		sample(0, 100, 200, 1),
		sample(10, 200, 400, 1),
	}}
	x, y := p.At(5)
	if x != 150 || y != 300 {
		t.Fatalf("expected midpoint (150,300), got (%f,%f)", x, y)
	}
	if x, _ := p.At(-5); x != 100 {
		t.Fatalf("expected clamp to first sample, got %f", x)
	}
	if x, _ := p.At(99); x != 200 {
		t.Fatalf("expected clamp to last sample, got %f", x)
	}
}

func TestPathDocRoundTrip(t *testing.T) {
	t.Parallel()

	p := Path{samples: []types.TrajectorySample{sample(0, 1, 2, 1), sample(10, 3, 4, 1)}}
	got := PathFromDoc(PathDoc(p))
	if len(got.Samples()) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got.Samples()))
	}
	x, y := got.At(10)
	if x != 3 || y != 4 {
		t.Fatalf("round trip lost data: (%f,%f)", x, y)
	}
}
