package compose

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/reelcut/reelcut/internal/domain/track"
	"github.com/reelcut/reelcut/internal/types"
)

func planInput() Input {
	raw := types.Trajectory{Stride: 5, Samples: []types.TrajectorySample{
		{Frame: 300, CenterX: 400, CenterY: 540, Confidence: 0.9},
		{Frame: 600, CenterX: 1500, CenterY: 540, Confidence: 0.9},
		{Frame: 900, CenterX: 900, CenterY: 540, Confidence: 0.9},
	}}
	path, _ := track.Smooth(raw, 1920, 1080, 30, 400, 0.3)
	return Input{
		Clip: types.Clip{
			ID:           "clip_01",
			RefinedStart: 10 * time.Second,
			RefinedEnd:   30 * time.Second,
		},
		Path:    path,
		Source:  "in.mp4",
		SourceW: 1920,
		SourceH: 1080,
		FPS:     30,
		TargetW: 1080,
		TargetH: 1920,
		Spec:    types.AssemblySpec{ImageTransition: "cut"},
		Captions: []types.Caption{
			{Text: "hello", StartOffset: 0, EndOffset: 2 * time.Second},
		},
		BurnCaptions: true,
	}
}

func TestPlan_Deterministic(t *testing.T) {
	t.Parallel()

	a := Plan(planInput())
	b := Plan(planInput())
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical inputs must produce identical plans")
	}
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	if string(ab) != string(bb) {
		t.Fatal("serialized plans differ")
	}
}

func TestPlan_CropWithinBounds(t *testing.T) {
	t.Parallel()

	p := Plan(planInput())
	if len(p.Entries) == 0 {
		t.Fatal("expected plan entries")
	}
	for _, e := range p.Entries {
		c := e.Crop
		if c.X < 0 || c.Y < 0 || c.X+c.W > p.SourceW || c.Y+c.H > p.SourceH {
			t.Fatalf("crop escapes source bounds: %+v", c)
		}
		if c.W <= 0 || c.H <= 0 {
			t.Fatalf("degenerate crop: %+v", c)
		}
	}
}

func TestPlan_CoversClipContiguously(t *testing.T) {
	t.Parallel()

	p := Plan(planInput())
	first := p.Entries[0]
	if first.Frames.From != 300 {
		t.Fatalf("plan must start at the refined start frame, got %d", first.Frames.From)
	}
	prevTo := first.Frames.From
	for _, e := range p.Entries {
		if e.Frames.From != prevTo {
			t.Fatalf("gap in frame ranges at %d", e.Frames.From)
		}
		prevTo = e.Frames.To
	}
	if prevTo != 900 {
		t.Fatalf("plan must end at the refined end frame, got %d", prevTo)
	}
}

func TestPlan_CaptionEditOnlyChangesCaptionRef(t *testing.T) {
	t.Parallel()

	before := Plan(planInput())

	in := planInput()
	in.Captions[0].Text = "hello, corrected"
	after := Plan(in)

	if before.CaptionRef == after.CaptionRef {
		t.Fatal("caption edit must change the caption ref")
	}
	before.CaptionRef = ""
	after.CaptionRef = ""
	if !reflect.DeepEqual(before, after) {
		t.Fatal("caption edit must not change crop geometry")
	}
}

func TestPlan_StaticPathSingleEntry(t *testing.T) {
	t.Parallel()

	in := planInput()
	in.Path = track.Static(1920, 1080, 300, 900)
	p := Plan(in)
	if len(p.Entries) != 1 {
		t.Fatalf("static path should coalesce to one entry, got %d", len(p.Entries))
	}
	c := p.Entries[0].Crop
	wantW := 1080 * 1080 / 1920 &^ 1
	if c.W != wantW || c.H != 1080 {
		t.Fatalf("unexpected crop size %dx%d", c.W, c.H)
	}
	if c.X != (1920-c.W)/2 {
		t.Fatalf("static crop not centered: x=%d", c.X)
	}
}

func TestCropSize_PortraitSource(t *testing.T) {
	t.Parallel()

	w, h := cropSize(720, 1280, 1080, 1920)
	if w > 720 || h > 1280 {
		t.Fatalf("crop exceeds source: %dx%d", w, h)
	}
	if w != 720 {
		t.Fatalf("portrait source should use full width, got %d", w)
	}
}

func TestCaptionRef_EmptyAndModes(t *testing.T) {
	t.Parallel()

	if CaptionRef(nil, true) != "" {
		t.Fatal("no captions means empty ref")
	}
	caps := []types.Caption{{Text: "x", StartOffset: 0, EndOffset: time.Second}}
	if CaptionRef(caps, true) == CaptionRef(caps, false) {
		t.Fatal("burn and track modes must produce distinct refs")
	}
}
