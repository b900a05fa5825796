// Package openrouter implements the segmentation oracle against the
// OpenRouter chat-completions API with strict JSON-schema responses.
//
// Transport failures are retried with exponential backoff and jitter;
// malformed per-item results degrade to synthesized judgments so one bad
// item never sinks the batch.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/types"
)

type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Timeout     time.Duration
	Logf        func(format string, args ...any)
}

type Adapter struct {
	key         string
	model       string
	baseURL     string
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	timeout     time.Duration
	logf        func(format string, args ...any)
	client      *http.Client
}

var _ ports.Oracle = (*Adapter)(nil)

func New(opts Options) *Adapter {
	if opts.Model == "" {
		opts.Model = "anthropic/claude-3.5-sonnet"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 4
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	return &Adapter{
		key:         opts.APIKey,
		model:       opts.Model,
		baseURL:     normalizeBaseURL(opts.BaseURL),
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.BackoffBase,
		backoffMax:  opts.BackoffMax,
		timeout:     opts.Timeout,
		logf:        opts.Logf,
		client:      &http.Client{Timeout: 5 * time.Minute},
	}
}

// ScoreChunks judges all chunks in a single call. The result always carries
// one judgment per submitted chunk in submission order; chunks the model
// missed or mangled come back zero-scored and context-dependent, with the
// defect recorded in Warnings.
func (a *Adapter) ScoreChunks(ctx context.Context, chunks []ports.ChunkText, hints ports.Hints) (ports.ScoreResult, error) {
	if len(chunks) == 0 {
		return ports.ScoreResult{}, nil
	}

	type chunkIn struct {
		ChunkID  string  `json:"chunk_id"`
		StartSec float64 `json:"start_sec"`
		EndSec   float64 `json:"end_sec"`
		Speakers string  `json:"speakers"`
		Text     string  `json:"text"`
	}
	arr := make([]chunkIn, 0, len(chunks))
	for _, c := range chunks {
		arr = append(arr, chunkIn{
			ChunkID:  c.Chunk.ID,
			StartSec: types.Seconds(c.Chunk.Start),
			EndSec:   types.Seconds(c.Chunk.End),
			Speakers: strings.Join(c.Chunk.Speakers, ", "),
			Text:     c.Text,
		})
	}
	chunksJSON, err := json.Marshal(arr)
	if err != nil {
		return ports.ScoreResult{}, &types.OracleError{Op: "score", Err: fmt.Errorf("marshal chunks: %w", err)}
	}

	prompt := "You are a short-form video editor judging podcast segments for viral potential. " +
		"For every chunk in the list, return a judgment with viral_score in [0,1], " +
		"editorial_reasoning, context_dependency (true when the chunk cannot stand alone), " +
		"emotional_peak, quotability, platform_fit, and a one-sentence summary. " +
		"Judge every chunk; never skip one. Return strictly valid JSON matching the schema." +
		hintBlock(hints) +
		"\n\nChunks JSON:\n" + string(chunksJSON)

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"judgments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"chunk_id":            map[string]any{"type": "string"},
						"viral_score":         map[string]any{"type": "number"},
						"editorial_reasoning": map[string]any{"type": "string"},
						"context_dependency":  map[string]any{"type": "boolean"},
						"emotional_peak":      map[string]any{"type": "string"},
						"quotability":         map[string]any{"type": "string"},
						"platform_fit":        map[string]any{"type": "string"},
						"summary":             map[string]any{"type": "string"},
					},
					"required": []string{"chunk_id", "viral_score", "editorial_reasoning", "context_dependency"},
				},
			},
		},
		"required": []string{"judgments"},
	}

	content, err := a.complete(ctx, "score", prompt, "reelcut_score", schema)
	if err != nil {
		return ports.ScoreResult{}, err
	}

	var out struct {
		Judgments []struct {
			ChunkID            string  `json:"chunk_id"`
			ViralScore         float64 `json:"viral_score"`
			EditorialReasoning string  `json:"editorial_reasoning"`
			ContextDependency  bool    `json:"context_dependency"`
			EmotionalPeak      string  `json:"emotional_peak"`
			Quotability        string  `json:"quotability"`
			PlatformFit        string  `json:"platform_fit"`
			Summary            string  `json:"summary"`
		} `json:"judgments"`
	}
	var res ports.ScoreResult
	if err := decodeContent(content, &out); err != nil {
		// The whole response was garbage: every chunk degrades, the pipeline
		// keeps running.
		res.Warnings = append(res.Warnings, &types.PerItemJudgmentError{ItemID: "batch", Reason: err.Error()})
		for _, c := range chunks {
			res.Judgments = append(res.Judgments, degradedJudgment(c.Chunk.ID))
		}
		return res, nil
	}

	byID := make(map[string]ports.ChunkJudgment, len(out.Judgments))
	for _, j := range out.Judgments {
		if _, dup := byID[j.ChunkID]; dup {
			res.Warnings = append(res.Warnings, &types.PerItemJudgmentError{ItemID: j.ChunkID, Reason: "duplicate judgment, first wins"})
			continue
		}
		byID[j.ChunkID] = ports.ChunkJudgment{
			ChunkID:            j.ChunkID,
			ViralScore:         j.ViralScore,
			EditorialReasoning: j.EditorialReasoning,
			ContextDependency:  j.ContextDependency,
			EmotionalPeak:      j.EmotionalPeak,
			Quotability:        j.Quotability,
			PlatformFit:        j.PlatformFit,
			Summary:            j.Summary,
		}
	}
	for _, c := range chunks {
		j, ok := byID[c.Chunk.ID]
		if !ok {
			res.Warnings = append(res.Warnings, &types.PerItemJudgmentError{ItemID: c.Chunk.ID, Reason: "no judgment returned"})
			res.Judgments = append(res.Judgments, degradedJudgment(c.Chunk.ID))
			continue
		}
		if math.IsNaN(j.ViralScore) || math.IsInf(j.ViralScore, 0) {
			res.Warnings = append(res.Warnings, &types.PerItemJudgmentError{ItemID: c.Chunk.ID, Reason: "non-finite viral score"})
			res.Judgments = append(res.Judgments, degradedJudgment(c.Chunk.ID))
			continue
		}
		res.Judgments = append(res.Judgments, j)
	}
	return res, nil
}

// RefineHint asks for tightened clip boundaries for one selected chunk.
// Returned times are absolute source timestamps.
func (a *Adapter) RefineHint(ctx context.Context, chunk ports.ChunkText, minDur, maxDur time.Duration) (ports.RefineJudgment, error) {
	prompt := fmt.Sprintf(
		"Tighten this podcast segment into a standalone clip between %.0f and %.0f seconds long. "+
			"Cut dead air and filler at the edges; the clip must start cleanly and end on a complete thought. "+
			"Return absolute source timestamps as start_sec and end_sec. "+
			"Segment runs %.2f to %.2f seconds.\n\nTranscript:\n%s",
		minDur.Seconds(), maxDur.Seconds(),
		types.Seconds(chunk.Chunk.Start), types.Seconds(chunk.Chunk.End), chunk.Text)

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"start_sec": map[string]any{"type": "number"},
			"end_sec":   map[string]any{"type": "number"},
		},
		"required": []string{"start_sec", "end_sec"},
	}

	content, err := a.complete(ctx, "refine", prompt, "reelcut_refine", schema)
	if err != nil {
		return ports.RefineJudgment{}, err
	}
	var out struct {
		StartSec float64 `json:"start_sec"`
		EndSec   float64 `json:"end_sec"`
	}
	if err := decodeContent(content, &out); err != nil {
		return ports.RefineJudgment{}, &types.OracleError{Op: "refine", Err: err}
	}
	return ports.RefineJudgment{
		Start: types.FromSeconds(out.StartSec),
		End:   types.FromSeconds(out.EndSec),
	}, nil
}

// PlatformPackage produces hook, caption, hashtags, tone, and the aligned
// caption sequence for one clip. Caption offsets come back clip-relative;
// absolute timestamps from the model are rebased here so downstream code
// never sees source time in a caption.
func (a *Adapter) PlatformPackage(ctx context.Context, clip types.Clip, text string, hints ports.Hints) (ports.PlatformJudgment, error) {
	prompt := fmt.Sprintf(
		"Package this clip for short-form platforms (Reels, TikTok, Shorts). "+
			"Write a hook line, a post caption, 3-8 hashtags, a tone (pacing and music_vibe), "+
			"and a caption sequence covering the spoken words. Caption start_sec/end_sec are "+
			"relative to the clip start; the clip is %.2f seconds long. Mark 0-3 emphasis words per caption."+
			hintBlock(hints)+
			"\n\nTranscript:\n%s",
		types.Seconds(clip.RefinedDuration()), text)

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hook":         map[string]any{"type": "string"},
			"reel_caption": map[string]any{"type": "string"},
			"hashtags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"tone": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pacing":     map[string]any{"type": "string"},
					"music_vibe": map[string]any{"type": "string"},
				},
				"required": []string{"pacing", "music_vibe"},
			},
			"captions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text":      map[string]any{"type": "string"},
						"start_sec": map[string]any{"type": "number"},
						"end_sec":   map[string]any{"type": "number"},
						"emphasis":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"text", "start_sec", "end_sec"},
				},
			},
		},
		"required": []string{"hook", "reel_caption", "hashtags", "tone", "captions"},
	}

	content, err := a.complete(ctx, "platform", prompt, "reelcut_platform", schema)
	if err != nil {
		return ports.PlatformJudgment{}, err
	}
	var out struct {
		Hook        string   `json:"hook"`
		ReelCaption string   `json:"reel_caption"`
		Hashtags    []string `json:"hashtags"`
		Tone        struct {
			Pacing    string `json:"pacing"`
			MusicVibe string `json:"music_vibe"`
		} `json:"tone"`
		Captions []struct {
			Text     string   `json:"text"`
			StartSec float64  `json:"start_sec"`
			EndSec   float64  `json:"end_sec"`
			Emphasis []string `json:"emphasis"`
		} `json:"captions"`
	}
	if err := decodeContent(content, &out); err != nil {
		return ports.PlatformJudgment{}, &types.OracleError{Op: "platform", Err: err}
	}

	j := ports.PlatformJudgment{
		Meta: types.PlatformMeta{
			Hook:        strings.TrimSpace(out.Hook),
			ReelCaption: strings.TrimSpace(out.ReelCaption),
			Hashtags:    out.Hashtags,
			Tone:        types.Tone{Pacing: out.Tone.Pacing, MusicVibe: out.Tone.MusicVibe},
		},
	}
	dur := types.Seconds(clip.RefinedDuration())
	base := types.Seconds(clip.RefinedStart)
	// Rebase captions the model anchored to source time despite the prompt.
	// Decided once for the whole sequence: a run of captions must never come
	// back half absolute, half relative.
	rebase := false
	for _, c := range out.Captions {
		if c.EndSec > dur+1 {
			rebase = true
			break
		}
	}
	for _, c := range out.Captions {
		start, end := c.StartSec, c.EndSec
		if rebase {
			start -= base
			end -= base
		}
		j.Captions = append(j.Captions, types.Caption{
			Text:        strings.TrimSpace(c.Text),
			StartOffset: types.FromSeconds(start),
			EndOffset:   types.FromSeconds(end),
			Emphasis:    c.Emphasis,
		})
	}
	return j, nil
}

// VisualPlan produces the creative overlay plan for one clip.
func (a *Adapter) VisualPlan(ctx context.Context, clip types.Clip, text string, hints ports.Hints) (ports.VisualJudgment, error) {
	prompt := fmt.Sprintf(
		"Design a visual treatment for this %.0f-second vertical clip: a sequence of beats "+
			"(image_concept, text_overlay, motion such as zoom-in/pan-left/static, motion_intensity 0-100, "+
			"duration_sec) plus a style (color_palette of hex colors, typography, composition one of "+
			"rule-of-thirds, centered, lower-third)."+
			hintBlock(hints)+
			"\n\nTranscript:\n%s",
		types.Seconds(clip.RefinedDuration()), text)

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"beats": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"image_concept":    map[string]any{"type": "string"},
						"text_overlay":     map[string]any{"type": "string"},
						"motion":           map[string]any{"type": "string"},
						"motion_intensity": map[string]any{"type": "integer"},
						"duration_sec":     map[string]any{"type": "number"},
					},
					"required": []string{"image_concept", "motion", "motion_intensity", "duration_sec"},
				},
			},
			"style": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"color_palette": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"typography":    map[string]any{"type": "string"},
					"composition":   map[string]any{"type": "string"},
				},
				"required": []string{"color_palette", "typography", "composition"},
			},
		},
		"required": []string{"beats", "style"},
	}

	content, err := a.complete(ctx, "visual", prompt, "reelcut_visual", schema)
	if err != nil {
		return ports.VisualJudgment{}, err
	}
	var out struct {
		Beats []struct {
			ImageConcept    string  `json:"image_concept"`
			TextOverlay     string  `json:"text_overlay"`
			Motion          string  `json:"motion"`
			MotionIntensity int     `json:"motion_intensity"`
			DurationSec     float64 `json:"duration_sec"`
		} `json:"beats"`
		Style struct {
			ColorPalette []string `json:"color_palette"`
			Typography   string   `json:"typography"`
			Composition  string   `json:"composition"`
		} `json:"style"`
	}
	if err := decodeContent(content, &out); err != nil {
		return ports.VisualJudgment{}, &types.OracleError{Op: "visual", Err: err}
	}

	j := ports.VisualJudgment{
		Style: types.StyleSpec{
			ColorPalette: out.Style.ColorPalette,
			Typography:   out.Style.Typography,
			Composition:  out.Style.Composition,
		},
	}
	for _, b := range out.Beats {
		j.Beats = append(j.Beats, types.VisualBeat{
			ImageConcept:    b.ImageConcept,
			TextOverlay:     b.TextOverlay,
			Motion:          b.Motion,
			MotionIntensity: clampIntensity(b.MotionIntensity),
			Duration:        types.FromSeconds(b.DurationSec),
		})
	}
	return j, nil
}

// complete sends one schema-constrained chat completion and retries transient
// failures. Errors that escape are *types.OracleError.
func (a *Adapter) complete(ctx context.Context, op, prompt, schemaName string, schema map[string]any) (string, error) {
	payload := map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"schema": schema,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &types.OracleError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := a.backoff(attempt - 1)
			a.logf("oracle %s: attempt %d/%d after %s: %v", op, attempt, a.maxAttempts, wait, lastErr)
			select {
			case <-ctx.Done():
				return "", &types.OracleError{Op: op, Retryable: true, Err: ctx.Err()}
			case <-time.After(wait):
			}
		}
		content, retryable, err := a.post(ctx, body)
		if err == nil {
			return content, nil
		}
		if !retryable {
			return "", &types.OracleError{Op: op, Retryable: false, Err: err}
		}
		lastErr = err
	}
	return "", &types.OracleError{Op: op, Retryable: true, Err: fmt.Errorf("%d attempts exhausted: %w", a.maxAttempts, lastErr)}
}

func (a *Adapter) post(ctx context.Context, body []byte) (content string, retryable bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", a.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", true, fmt.Errorf("timeout after %s (model=%s)", a.timeout, a.model)
		}
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := ""
		if readErr == nil {
			msg = truncate(redactSecrets(string(rb), a.key), 400)
		}
		err := fmt.Errorf("status %d: %s", resp.StatusCode, msg)
		// Auth and quota problems do not heal with retries.
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired:
			return "", false, err
		case http.StatusTooManyRequests:
			return "", true, err
		}
		return "", resp.StatusCode >= 500, err
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", true, fmt.Errorf("decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return "", true, errors.New("no choices in response")
	}
	return messageContentToString(raw.Choices[0].Message.Content)
}

// backoff is exponential with full jitter on the upper half, capped at the
// configured maximum.
func (a *Adapter) backoff(n int) time.Duration {
	d := a.backoffBase
	for i := 0; i < n && d < a.backoffMax; i++ {
		d *= 2
	}
	if d > a.backoffMax {
		d = a.backoffMax
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func degradedJudgment(chunkID string) ports.ChunkJudgment {
	return ports.ChunkJudgment{ChunkID: chunkID, ViralScore: 0, ContextDependency: true}
}

func hintBlock(h ports.Hints) string {
	var parts []string
	if h.Guest != "" {
		parts = append(parts, "Guest: "+h.Guest)
	}
	if h.Topic != "" {
		parts = append(parts, "Topic: "+h.Topic)
	}
	if h.Tone != "" {
		parts = append(parts, "Desired tone: "+h.Tone)
	}
	if len(parts) == 0 {
		return ""
	}
	return "\n\nContext:\n" + strings.Join(parts, "\n")
}

func clampIntensity(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func decodeContent(content string, v any) error {
	clean, err := extractJSONObject(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("openrouter: decode content: %w", err)
	}
	return nil
}

func messageContentToString(v any) (string, bool, error) {
	switch x := v.(type) {
	case string:
		return x, false, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", true, errors.New("openrouter: empty content")
		}
		return s, false, nil
	default:
		return "", true, fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

func extractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("openrouter: empty content")
	}

	// Strip markdown code fences.
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	// Best-effort: take the first JSON object found.
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}

	return "", fmt.Errorf("openrouter: could not locate JSON object in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
