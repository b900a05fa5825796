package types

import "time"

// Utterance is one normalized transcript entry. The sequence is ordered by
// start time and immutable once parsed.
type Utterance struct {
	Speaker string
	Text    string
	Start   time.Duration
	End     time.Duration
}

func (u Utterance) Duration() time.Duration { return u.End - u.Start }

// Chunk is a time-bounded, speaker-bounded segment of the transcript, the
// unit of viral-potential scoring. Chunks never overlap and cover the
// analyzed range without gaps.
type Chunk struct {
	ID       string
	Start    time.Duration
	End      time.Duration
	Speakers []string
	Summary  string
}

func (c Chunk) Duration() time.Duration { return c.End - c.Start }

// ScoredChunk is a Chunk plus the oracle's viral-potential judgment.
// ViralScore is opaque; the only invariant is that it is finite and in [0,1].
type ScoredChunk struct {
	Chunk
	ViralScore         float64
	EditorialReasoning string
	ContextDependency  bool
	EmotionalPeak      string
	Quotability        string
	PlatformFit        string
}

// Clip is a selected chunk with a refined interval. The refined interval
// stays within the original chunk interval expanded by at most the
// configured pad.
type Clip struct {
	ID           string
	ChunkID      string
	Start        time.Duration
	End          time.Duration
	RefinedStart time.Duration
	RefinedEnd   time.Duration
	ViralScore   float64
	Reasoning    string
}

func (c Clip) RefinedDuration() time.Duration { return c.RefinedEnd - c.RefinedStart }

// Caption offsets are relative to the refined clip start, ordered and
// non-overlapping.
type Caption struct {
	Text        string
	StartOffset time.Duration
	EndOffset   time.Duration
	Emphasis    []string
}

type Tone struct {
	Pacing    string
	MusicVibe string
}

type PlatformMeta struct {
	Hook        string
	ReelCaption string
	Hashtags    []string
	Tone        Tone
}

// VisualBeat is one entry of the creative overlay plan. Beat durations are
// not required to partition the clip.
type VisualBeat struct {
	ImageConcept    string
	TextOverlay     string
	Motion          string
	MotionIntensity int
	Duration        time.Duration
}

type StyleSpec struct {
	ColorPalette []string
	Typography   string
	Composition  string
}

// AssemblySpec is the fixed technical envelope, configuration rather than
// oracle output. Legal values are enforced by config validation.
type AssemblySpec struct {
	AspectRatio        string
	Resolution         string
	FPS                int
	AudioFormat        string
	VideoCodec         string
	BackgroundLayer    string
	AudioWaveform      bool
	CaptionsLayer      bool
	HookOverlay        bool
	ImageTransition    string
	TransitionDuration time.Duration
	TextAnimation      string
}

// TrajectorySample is one analyzed frame's detected subject center in source
// pixels. Low-confidence frames are retained and flagged, never dropped.
type TrajectorySample struct {
	Frame      int
	CenterX    float64
	CenterY    float64
	Confidence float64
}

// Trajectory is the raw per-sampled-frame subject path. Stride is the frame
// sampling interval used by the tracker.
type Trajectory struct {
	Stride  int
	Samples []TrajectorySample
}

type CropRect struct {
	X int
	Y int
	W int
	H int
}

// FrameRange is half-open: [From, To).
type FrameRange struct {
	From int
	To   int
}

type PlanEntry struct {
	Frames FrameRange
	Crop   CropRect
}

// RenderPlan fully determines pixel output given the source media. It is
// rebuilt fresh on every render request and never mutated in place.
type RenderPlan struct {
	Source        string
	Start         time.Duration
	End           time.Duration
	SourceW       int
	SourceH       int
	FPS           int
	TargetW       int
	TargetH       int
	Entries       []PlanEntry
	CaptionRef    string
	BurnCaptions  bool
	TransitionRef string
}

func (p RenderPlan) Duration() time.Duration { return p.End - p.Start }
