package analyze

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/types"
)

func refineHint(s, e float64) ports.RefineJudgment {
	return ports.RefineJudgment{Start: secs(s), End: secs(e)}
}

type fakeOracle struct {
	score    func(chunks []ports.ChunkText) (ports.ScoreResult, error)
	refine   func(chunk ports.ChunkText) (ports.RefineJudgment, error)
	platform func(clip types.Clip) (ports.PlatformJudgment, error)
	visual   func(clip types.Clip) (ports.VisualJudgment, error)
}

func (f fakeOracle) ScoreChunks(_ context.Context, chunks []ports.ChunkText, _ ports.Hints) (ports.ScoreResult, error) {
	if f.score != nil {
		return f.score(chunks)
	}
	var out ports.ScoreResult
	for i, c := range chunks {
		out.Judgments = append(out.Judgments, ports.ChunkJudgment{
			ChunkID:    c.Chunk.ID,
			ViralScore: 0.5 + float64(i)*0.01,
			Summary:    "segment " + c.Chunk.ID,
		})
	}
	return out, nil
}

func (f fakeOracle) RefineHint(_ context.Context, chunk ports.ChunkText, _, _ time.Duration) (ports.RefineJudgment, error) {
	if f.refine != nil {
		return f.refine(chunk)
	}
	return ports.RefineJudgment{Start: chunk.Chunk.Start, End: chunk.Chunk.End}, nil
}

func (f fakeOracle) PlatformPackage(_ context.Context, clip types.Clip, _ string, _ ports.Hints) (ports.PlatformJudgment, error) {
	if f.platform != nil {
		return f.platform(clip)
	}
	return ports.PlatformJudgment{
		Meta: types.PlatformMeta{Hook: "hook for " + clip.ID, ReelCaption: "caption", Hashtags: []string{"#clip"}},
		Captions: []types.Caption{
			{Text: "first", StartOffset: 0, EndOffset: 2 * time.Second},
			{Text: "second", StartOffset: 2 * time.Second, EndOffset: 4 * time.Second},
		},
	}, nil
}

func (f fakeOracle) VisualPlan(_ context.Context, clip types.Clip, _ string, _ ports.Hints) (ports.VisualJudgment, error) {
	if f.visual != nil {
		return f.visual(clip)
	}
	return ports.VisualJudgment{
		Beats: []types.VisualBeat{{ImageConcept: "talking head", Motion: "zoom-in", MotionIntensity: 40, Duration: 5 * time.Second}},
		Style: types.StyleSpec{ColorPalette: []string{"#fff"}, Typography: "sans", Composition: "centered"},
	}, nil
}

func testConfig() Config {
	return Config{
		ChunkMin: 30 * time.Second,
		ChunkMax: 90 * time.Second,
		TopK:     3,
		ClipMin:  15 * time.Second,
		ClipMax:  90 * time.Second,
		Pad:      2 * time.Second,
		Assembly: types.AssemblySpec{
			AspectRatio: "9:16", Resolution: "1080x1920", FPS: 30,
			AudioFormat: "AAC", VideoCodec: "H.264",
			BackgroundLayer: "solid-color", CaptionsLayer: true,
			ImageTransition: "cut", TextAnimation: "fade-in",
		},
	}
}

func longTranscript(n int) []types.Utterance {
	var utts []types.Utterance
	for i := 0; i < n; i++ {
		utts = append(utts, speech("Host", float64(i*10), float64(i*10+10),
			fmt.Sprintf("Sentence number %d ends cleanly.", i)))
	}
	return utts
}

func TestRun_HappyPath(t *testing.T) {
	t.Parallel()

	status := NewStatus()
	var seen []Stage
	status.Observe(func(s Snapshot) { seen = append(seen, s.Stage) })

	p := &Pipeline{Oracle: fakeOracle{}, Cfg: testConfig(), Status: status}
	res, err := p.Run(context.Background(), longTranscript(20), ports.Hints{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Chunks) == 0 || len(res.Scored) != len(res.Chunks) {
		t.Fatalf("expected a score per chunk: %d chunks, %d scored", len(res.Chunks), len(res.Scored))
	}
	if len(res.Clips) != 3 {
		t.Fatalf("expected top-3 clips, got %d", len(res.Clips))
	}
	for _, c := range res.Clips {
		if c.Clip.RefinedDuration() <= 0 {
			t.Fatalf("clip %s has non-positive refined duration", c.Clip.ID)
		}
		if c.Assembly.AspectRatio != "9:16" {
			t.Fatalf("assembly spec missing on clip %s", c.Clip.ID)
		}
		if c.Meta.Hook == "" || len(c.Captions) == 0 || len(c.Beats) == 0 {
			t.Fatalf("clip %s missing platform/visual output", c.Clip.ID)
		}
	}

	want := []Stage{StageChunking, StageChunking, StageScoring, StageRefining,
		StagePlatformOptimizing, StageVisualPlanning, StageAssemblySynthesizing, StageDone}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("unexpected stage sequence: %v", seen)
	}
}

func TestRun_EmptyTranscript(t *testing.T) {
	t.Parallel()

	status := NewStatus()
	p := &Pipeline{Oracle: fakeOracle{}, Cfg: testConfig(), Status: status}
	_, err := p.Run(context.Background(), nil, ports.Hints{})
	var inputErr *types.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	snap := status.Snapshot()
	if snap.Stage != StageFailed || snap.FailureReason != "EmptyInput" {
		t.Fatalf("expected Failed(EmptyInput), got %+v", snap)
	}
}

func TestRun_MalformedJudgmentIsSoft(t *testing.T) {
	t.Parallel()

	// Oracle answers for every chunk except the second; the pipeline must
	// still yield a judgment for all five.
	oracle := fakeOracle{score: func(chunks []ports.ChunkText) (ports.ScoreResult, error) {
		var out ports.ScoreResult
		for _, c := range chunks {
			if c.Chunk.ID == "chunk_02" {
				continue
			}
			out.Judgments = append(out.Judgments, ports.ChunkJudgment{ChunkID: c.Chunk.ID, ViralScore: 0.7})
		}
		return out, nil
	}}
	p := &Pipeline{Oracle: oracle, Cfg: testConfig()}

	res, err := p.Run(context.Background(), longTranscript(15), ports.Hints{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Scored) != 5 {
		t.Fatalf("expected 5 scored chunks, got %d", len(res.Scored))
	}
	bad := res.Scored[1]
	if bad.ID != "chunk_02" || bad.ViralScore != 0 || !bad.ContextDependency {
		t.Fatalf("chunk_02 should be zero-scored and context dependent: %+v", bad)
	}
	for _, sc := range res.Scored {
		if sc.ID != "chunk_02" && sc.ViralScore != 0.7 {
			t.Fatalf("other chunks must be unaffected: %+v", sc)
		}
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a per-item warning")
	}
}

func TestRun_OracleFailurePreservesChunks(t *testing.T) {
	t.Parallel()

	oracle := fakeOracle{score: func([]ports.ChunkText) (ports.ScoreResult, error) {
		return ports.ScoreResult{}, &types.OracleError{Op: "score", Err: errors.New("boom")}
	}}
	status := NewStatus()
	p := &Pipeline{Oracle: oracle, Cfg: testConfig(), Status: status}

	res, err := p.Run(context.Background(), longTranscript(15), ports.Hints{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(res.Chunks) == 0 {
		t.Fatal("partial results (chunks) must be preserved")
	}
	if status.Snapshot().Stage != StageFailed {
		t.Fatalf("expected Failed, got %s", status.Snapshot().Stage)
	}
}

func TestRun_OracleOutageInLaterStagesIsFatal(t *testing.T) {
	t.Parallel()

	outage := &types.OracleError{Op: "judge", Retryable: false, Err: errors.New("401 unauthorized")}
	cases := []struct {
		name   string
		oracle fakeOracle
	}{
		{"refining", fakeOracle{refine: func(ports.ChunkText) (ports.RefineJudgment, error) {
			return ports.RefineJudgment{}, outage
		}}},
		{"platform-optimizing", fakeOracle{platform: func(types.Clip) (ports.PlatformJudgment, error) {
			return ports.PlatformJudgment{}, outage
		}}},
		{"visual-planning", fakeOracle{visual: func(types.Clip) (ports.VisualJudgment, error) {
			return ports.VisualJudgment{}, outage
		}}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			status := NewStatus()
			p := &Pipeline{Oracle: c.oracle, Cfg: testConfig(), Status: status}
			res, err := p.Run(context.Background(), longTranscript(20), ports.Hints{})
			var oerr *types.OracleError
			if !errors.As(err, &oerr) {
				t.Fatalf("expected the transport error to surface, got %v", err)
			}
			snap := status.Snapshot()
			if snap.Stage != StageFailed || snap.FailureReason == "" {
				t.Fatalf("expected Failed with a reason, got %+v", snap)
			}
			if len(res.Chunks) == 0 || len(res.Scored) == 0 {
				t.Fatal("partial results from earlier stages must be preserved")
			}
		})
	}
}

func TestRun_BandRejectionNotClamping(t *testing.T) {
	t.Parallel()

	// Hints trim every chunk to 5 seconds, below the 15s floor: clips must be
	// rejected, not stretched.
	oracle := fakeOracle{refine: func(chunk ports.ChunkText) (ports.RefineJudgment, error) {
		return ports.RefineJudgment{Start: chunk.Chunk.Start, End: chunk.Chunk.Start + 5*time.Second}, nil
	}}
	p := &Pipeline{Oracle: oracle, Cfg: testConfig()}

	res, err := p.Run(context.Background(), longTranscript(15), ports.Hints{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Clips) != 0 {
		t.Fatalf("expected all clips rejected, got %d", len(res.Clips))
	}
	if len(res.Warnings) < 3 {
		t.Fatalf("expected rejection warnings, got %d", len(res.Warnings))
	}
}

func TestRun_RefinedWithinPad(t *testing.T) {
	t.Parallel()

	p := &Pipeline{Oracle: fakeOracle{}, Cfg: testConfig()}
	res, err := p.Run(context.Background(), longTranscript(30), ports.Hints{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	byID := map[string]types.Chunk{}
	for _, c := range res.Chunks {
		byID[c.ID] = c
	}
	pad := testConfig().Pad
	for _, c := range res.Clips {
		chunk := byID[c.Clip.ChunkID]
		if c.Clip.RefinedStart < chunk.Start-pad || c.Clip.RefinedEnd > chunk.End+pad {
			t.Fatalf("clip %s interval escapes chunk plus pad", c.Clip.ID)
		}
	}
}

func TestSelectTopK_StableAndTieBroken(t *testing.T) {
	t.Parallel()

	scored := []types.ScoredChunk{
		{Chunk: types.Chunk{ID: "a", Start: secs(100)}, ViralScore: 0.8},
		{Chunk: types.Chunk{ID: "b", Start: secs(10)}, ViralScore: 0.8},
		{Chunk: types.Chunk{ID: "c", Start: secs(50)}, ViralScore: 0.9},
	}
	first := selectTopK(scored, 2)
	second := selectTopK(scored, 2)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("selection must be idempotent for identical input")
	}
	if first[0].ID != "c" || first[1].ID != "b" {
		t.Fatalf("unexpected order: %s, %s", first[0].ID, first[1].ID)
	}
}

func TestNormalizeCaptions(t *testing.T) {
	t.Parallel()

	caps := []types.Caption{
		{Text: "late", StartOffset: 5 * time.Second, EndOffset: 20 * time.Second},
		{Text: "early", StartOffset: -time.Second, EndOffset: 3 * time.Second},
		{Text: "", StartOffset: 0, EndOffset: time.Second},
		{Text: "overlap", StartOffset: 2 * time.Second, EndOffset: 9 * time.Second},
	}
	got := NormalizeCaptions(caps, 10*time.Second)
	if len(got) != 3 {
		t.Fatalf("expected 3 captions, got %d", len(got))
	}
	for i := range got {
		if got[i].StartOffset < 0 || got[i].EndOffset > 10*time.Second {
			t.Fatalf("caption %d outside clip: %+v", i, got[i])
		}
		if i > 0 && got[i-1].EndOffset > got[i].StartOffset {
			t.Fatalf("captions overlap at %d", i)
		}
	}
}
