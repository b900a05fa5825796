// Package analyze implements the six-stage clip extraction pipeline:
// Chunking -> Scoring -> Refining -> PlatformOptimizing -> VisualPlanning ->
// AssemblySynthesizing. Stages run strictly in order for the whole
// transcript; failures scope to the smallest unit possible so one bad item
// never aborts the batch.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/types"
)

type Config struct {
	ChunkMin time.Duration
	ChunkMax time.Duration
	TopK     int
	ClipMin  time.Duration
	ClipMax  time.Duration
	Pad      time.Duration
	Assembly types.AssemblySpec
}

type Pipeline struct {
	Oracle ports.Oracle
	Trim   TrimPolicy
	Cfg    Config
	Logf   func(format string, args ...any)
	Status *Status
}

// ClipPackage is everything the pipeline owns for one selected clip.
type ClipPackage struct {
	Clip     types.Clip
	Meta     types.PlatformMeta
	Captions []types.Caption
	Beats    []types.VisualBeat
	Style    types.StyleSpec
	Assembly types.AssemblySpec
	Text     string
}

// Result carries whatever the pipeline produced, including partial output
// when a stage failed. Warnings list degraded or skipped items.
type Result struct {
	Chunks   []types.Chunk
	Scored   []types.ScoredChunk
	Clips    []ClipPackage
	Warnings []error
}

// Run executes the state machine once over the utterance sequence. The
// returned error is non-nil only for fatal failures; Result still holds the
// stages completed before the failure.
func (p *Pipeline) Run(ctx context.Context, utts []types.Utterance, hints ports.Hints) (Result, error) {
	logf := p.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	status := p.Status
	if status == nil {
		status = NewStatus()
	}
	trim := p.Trim
	if trim == nil {
		trim = BoundaryTrim{}
	}

	var res Result

	// Chunking
	status.enter(StageChunking)
	if len(utts) == 0 {
		status.fail("EmptyInput")
		return res, &types.InputError{Msg: "empty transcript"}
	}
	spans := Partition(utts, p.Cfg.ChunkMin, p.Cfg.ChunkMax)
	for _, s := range spans {
		res.Chunks = append(res.Chunks, s.Chunk)
	}
	logf("chunking: %d utterances -> %d chunks", len(utts), len(spans))

	// Scoring
	status.enter(StageScoring)
	texts := make([]ports.ChunkText, 0, len(spans))
	for _, s := range spans {
		texts = append(texts, ports.ChunkText{Chunk: s.Chunk, Text: Excerpt(s.Utts)})
	}
	scoreRes, err := p.Oracle.ScoreChunks(ctx, texts, hints)
	if err != nil {
		status.fail("scoring: " + err.Error())
		return res, err
	}
	res.Warnings = append(res.Warnings, scoreRes.Warnings...)
	scored, warns := applyJudgments(spans, scoreRes.Judgments)
	res.Warnings = append(res.Warnings, warns...)
	res.Scored = scored
	for i := range spans {
		spans[i].Chunk = scored[i].Chunk
	}
	logf("scoring: %d chunks judged", len(scored))

	// Refining
	status.enter(StageRefining)
	selected := selectTopK(scored, p.Cfg.TopK)
	var packages []ClipPackage
	for _, sc := range selected {
		span := spanByID(spans, sc.ID)
		hint, hintErr := p.Oracle.RefineHint(ctx, ports.ChunkText{Chunk: sc.Chunk, Text: Excerpt(span.Utts)}, p.Cfg.ClipMin, p.Cfg.ClipMax)
		if hintErr != nil {
			if oracleDown(hintErr) {
				status.fail("refining: " + hintErr.Error())
				res.Clips = packages
				return res, hintErr
			}
			// Soft: the trim policy works from utterance boundaries alone.
			res.Warnings = append(res.Warnings, &types.PerItemJudgmentError{ItemID: sc.ID, Reason: "refine hint: " + hintErr.Error()})
			hint = ports.RefineJudgment{}
		}
		start, end := trim.Trim(span, hint, p.Cfg.Pad)
		start, end = clampToPad(start, end, sc.Chunk, p.Cfg.Pad)
		dur := end - start
		if dur < p.Cfg.ClipMin || dur > p.Cfg.ClipMax {
			// Rejected, not clamped: stretching would fabricate content.
			res.Warnings = append(res.Warnings, &types.PerItemJudgmentError{
				ItemID: sc.ID,
				Reason: fmt.Sprintf("refined duration %s outside band [%s, %s]", dur, p.Cfg.ClipMin, p.Cfg.ClipMax),
			})
			continue
		}
		packages = append(packages, ClipPackage{
			Clip: types.Clip{
				ID:           fmt.Sprintf("clip_%02d", len(packages)+1),
				ChunkID:      sc.ID,
				Start:        sc.Chunk.Start,
				End:          sc.Chunk.End,
				RefinedStart: start,
				RefinedEnd:   end,
				ViralScore:   sc.ViralScore,
				Reasoning:    sc.EditorialReasoning,
			},
			Text: Excerpt(span.Utts),
		})
	}
	logf("refining: %d of %d selected chunks kept", len(packages), len(selected))

	// PlatformOptimizing
	status.enter(StagePlatformOptimizing)
	for i := range packages {
		pkg := &packages[i]
		judgment, pkgErr := p.Oracle.PlatformPackage(ctx, pkg.Clip, pkg.Text, hints)
		if pkgErr != nil {
			if oracleDown(pkgErr) {
				status.fail("platform-optimizing: " + pkgErr.Error())
				res.Clips = packages
				return res, pkgErr
			}
			res.Warnings = append(res.Warnings, &types.PerItemJudgmentError{ItemID: pkg.Clip.ID, Reason: "platform package: " + pkgErr.Error()})
			judgment = ports.PlatformJudgment{Captions: fallbackCaptions(spanByID(spans, pkg.Clip.ChunkID).Utts, pkg.Clip)}
		}
		pkg.Meta = judgment.Meta
		pkg.Captions = NormalizeCaptions(judgment.Captions, pkg.Clip.RefinedDuration())
	}

	// VisualPlanning
	status.enter(StageVisualPlanning)
	for i := range packages {
		pkg := &packages[i]
		visual, visErr := p.Oracle.VisualPlan(ctx, pkg.Clip, pkg.Text, hints)
		if visErr != nil {
			if oracleDown(visErr) {
				status.fail("visual-planning: " + visErr.Error())
				res.Clips = packages
				return res, visErr
			}
			res.Warnings = append(res.Warnings, &types.PerItemJudgmentError{ItemID: pkg.Clip.ID, Reason: "visual plan: " + visErr.Error()})
			visual = defaultVisual(pkg.Clip)
		}
		pkg.Beats = visual.Beats
		pkg.Style = visual.Style
	}

	// AssemblySynthesizing: fixed envelope, never oracle-derived.
	status.enter(StageAssemblySynthesizing)
	for i := range packages {
		packages[i].Assembly = p.Cfg.Assembly
	}

	res.Clips = packages
	status.enter(StageDone)
	return res, nil
}

// oracleDown reports a transport-level oracle failure. Errors of this type
// already exhausted the adapter's retries, so the stage cannot make progress:
// the run fails with whatever the earlier stages produced.
func oracleDown(err error) bool {
	var oerr *types.OracleError
	return errors.As(err, &oerr)
}

// applyJudgments pairs every chunk with a judgment. Chunks the oracle missed
// or mangled get viral_score 0 and context_dependency true instead of being
// dropped.
func applyJudgments(spans []Span, judgments []ports.ChunkJudgment) ([]types.ScoredChunk, []error) {
	byID := make(map[string]ports.ChunkJudgment, len(judgments))
	for _, j := range judgments {
		byID[j.ChunkID] = j
	}

	out := make([]types.ScoredChunk, 0, len(spans))
	var warns []error
	for _, s := range spans {
		j, ok := byID[s.Chunk.ID]
		if !ok {
			warns = append(warns, &types.PerItemJudgmentError{ItemID: s.Chunk.ID, Reason: "no judgment returned"})
			out = append(out, types.ScoredChunk{Chunk: s.Chunk, ViralScore: 0, ContextDependency: true})
			continue
		}
		score := j.ViralScore
		if math.IsNaN(score) || math.IsInf(score, 0) {
			warns = append(warns, &types.PerItemJudgmentError{ItemID: s.Chunk.ID, Reason: "non-finite viral score"})
			score = 0
			j.ContextDependency = true
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		chunk := s.Chunk
		chunk.Summary = j.Summary
		out = append(out, types.ScoredChunk{
			Chunk:              chunk,
			ViralScore:         score,
			EditorialReasoning: j.EditorialReasoning,
			ContextDependency:  j.ContextDependency,
			EmotionalPeak:      j.EmotionalPeak,
			Quotability:        j.Quotability,
			PlatformFit:        j.PlatformFit,
		})
	}
	return out, warns
}

// selectTopK is stable under re-run for identical judgments: score
// descending, earlier start wins ties.
func selectTopK(scored []types.ScoredChunk, k int) []types.ScoredChunk {
	sorted := make([]types.ScoredChunk, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ViralScore != sorted[j].ViralScore {
			return sorted[i].ViralScore > sorted[j].ViralScore
		}
		return sorted[i].Start < sorted[j].Start
	})
	if k < len(sorted) {
		sorted = sorted[:k]
	}
	return sorted
}

func spanByID(spans []Span, id string) Span {
	for _, s := range spans {
		if s.Chunk.ID == id {
			return s
		}
	}
	return Span{}
}

func clampToPad(start, end time.Duration, chunk types.Chunk, pad time.Duration) (time.Duration, time.Duration) {
	lo := chunk.Start - pad
	if lo < 0 {
		lo = 0
	}
	hi := chunk.End + pad
	if start < lo {
		start = lo
	}
	if end > hi {
		end = hi
	}
	return start, end
}

// NormalizeCaptions clamps captions to [0, dur], sorts them, and resolves
// overlaps by cutting each caption at the start of the next.
func NormalizeCaptions(caps []types.Caption, dur time.Duration) []types.Caption {
	out := make([]types.Caption, 0, len(caps))
	for _, c := range caps {
		if c.StartOffset < 0 {
			c.StartOffset = 0
		}
		if c.EndOffset > dur {
			c.EndOffset = dur
		}
		if c.Text == "" || c.EndOffset <= c.StartOffset {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartOffset < out[j].StartOffset })
	for i := 0; i+1 < len(out); i++ {
		if out[i].EndOffset > out[i+1].StartOffset {
			out[i].EndOffset = out[i+1].StartOffset
		}
	}
	// Cutting may have emptied some captions.
	kept := out[:0]
	for _, c := range out {
		if c.EndOffset > c.StartOffset {
			kept = append(kept, c)
		}
	}
	return kept
}

// fallbackCaptions builds plain captions straight from the utterances when
// the platform judgment failed, keeping the clip renderable.
func fallbackCaptions(utts []types.Utterance, clip types.Clip) []types.Caption {
	var out []types.Caption
	for _, u := range utts {
		if u.End <= clip.RefinedStart || u.Start >= clip.RefinedEnd {
			continue
		}
		start := u.Start - clip.RefinedStart
		end := u.End - clip.RefinedStart
		out = append(out, types.Caption{Text: u.Text, StartOffset: start, EndOffset: end})
	}
	return out
}

func defaultVisual(clip types.Clip) ports.VisualJudgment {
	return ports.VisualJudgment{
		Beats: []types.VisualBeat{{
			ImageConcept:    "speaker on camera",
			Motion:          "zoom-in",
			MotionIntensity: 30,
			Duration:        clip.RefinedDuration(),
		}},
		Style: types.StyleSpec{
			ColorPalette: []string{"#FFFFFF", "#FFD200"},
			Typography:   "bold sans-serif",
			Composition:  "centered",
		},
	}
}
