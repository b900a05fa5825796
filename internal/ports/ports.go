// Package ports defines the boundaries to the external collaborators: the
// video-processing engine, the segmentation oracle, and the face detector.
// Adapters live under ports/adapters.
package ports

import (
	"context"
	"time"

	"github.com/reelcut/reelcut/internal/types"
)

// MediaInfo is what probing the source reports.
type MediaInfo struct {
	Width    int
	Height   int
	FPS      int
	Duration time.Duration
}

// Frame is one decoded grayscale frame handed to the detector. Index is the
// source frame number.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pixels []uint8
}

// VideoTool is the external video-processing engine boundary.
type VideoTool interface {
	Probe(ctx context.Context, path string) (MediaInfo, error)

	// SampleFrames decodes frames across [start, end) at the given stride and
	// calls fn for each. Returning an error from fn stops the stream.
	SampleFrames(ctx context.Context, path string, start, end time.Duration, stride int, fn func(Frame) error) error

	// Execute renders a plan to outPath, burning or muxing the subtitle file
	// depending on plan.BurnCaptions. subtitlePath may be empty when the plan
	// has no caption layer.
	Execute(ctx context.Context, plan types.RenderPlan, subtitlePath, outPath string) error
}

// Detection is one face candidate in a frame, in source pixels.
type Detection struct {
	CenterX    float64
	CenterY    float64
	Size       float64
	Confidence float64
}

// FaceDetector finds face candidates in a single frame.
type FaceDetector interface {
	Detect(frame Frame) []Detection
}

// Hints is optional user-supplied context forwarded to the oracle.
type Hints struct {
	Guest string
	Topic string
	Tone  string
}

// ChunkText pairs a chunk with its transcript excerpt for oracle prompts.
type ChunkText struct {
	Chunk types.Chunk
	Text  string
}

// ChunkJudgment is the oracle's scoring verdict for one chunk. Malformed
// per-item results never surface here; the adapter converts them into
// zero-score, context-dependent judgments and reports the item in Warnings.
type ChunkJudgment struct {
	ChunkID            string
	ViralScore         float64
	EditorialReasoning string
	ContextDependency  bool
	EmotionalPeak      string
	Quotability        string
	PlatformFit        string
	Summary            string
}

// ScoreResult carries one judgment per submitted chunk, in submission order,
// plus per-item warnings for judgments the adapter had to synthesize.
type ScoreResult struct {
	Judgments []ChunkJudgment
	Warnings  []error
}

// RefineJudgment is the oracle's boundary-trim hint for one selected chunk.
type RefineJudgment struct {
	Start time.Duration
	End   time.Duration
}

// PlatformJudgment bundles platform metadata with the aligned caption
// sequence, offsets relative to the refined clip start.
type PlatformJudgment struct {
	Meta     types.PlatformMeta
	Captions []types.Caption
}

// VisualJudgment is the per-clip visual treatment plan.
type VisualJudgment struct {
	Beats []types.VisualBeat
	Style types.StyleSpec
}

// Oracle is the segmentation/scoring judgment service. All methods retry
// transient failures internally; errors that escape are *types.OracleError.
type Oracle interface {
	ScoreChunks(ctx context.Context, chunks []ChunkText, hints Hints) (ScoreResult, error)
	RefineHint(ctx context.Context, chunk ChunkText, minDur, maxDur time.Duration) (RefineJudgment, error)
	PlatformPackage(ctx context.Context, clip types.Clip, text string, hints Hints) (PlatformJudgment, error)
	VisualPlan(ctx context.Context, clip types.Clip, text string, hints Hints) (VisualJudgment, error)
}
