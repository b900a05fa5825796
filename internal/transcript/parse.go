// Package transcript normalizes raw transcript formats into one canonical
// ordered utterance sequence. Supported inputs: plain timestamped text
// ("[HH:MM:SS] Speaker: text"), SubRip blocks, and WebVTT cues. Missing
// speaker labels default to "Unknown".
package transcript

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/reelcut/reelcut/internal/types"
)

const defaultSpeaker = "Unknown"

// Plain lines without explicit end times get a duration estimated from a
// 150 words-per-minute speaking rate.
const wordsPerMinute = 150.0

type Format string

const (
	FormatAuto  Format = ""
	FormatPlain Format = "txt"
	FormatSRT   Format = "srt"
	FormatVTT   Format = "vtt"
)

var (
	srtCueRE  = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[,.]\d{3})`)
	srtLikeRE = regexp.MustCompile(`(?m)^\d+\s*\n\d{2}:\d{2}:\d{2},\d{3}\s*-->`)

	// "[00:01:15] Joe: text" or "00:01:15 Joe: text"
	plainTimedRE   = regexp.MustCompile(`^\[?(\d{1,2}:\d{2}(?::\d{2})?(?:[.,]\d{1,3})?)\]?\s+([^:]+):\s*(.*)$`)
	plainSpeakerRE = regexp.MustCompile(`^([^:]{1,64}):\s*(.+)$`)
	cueSpeakerRE   = regexp.MustCompile(`^(?:\[([^\]]+)\]:?|<v\s+([^>]+)>|([^:]{1,64}):)\s*(.*)$`)
)

// Parse normalizes content into utterances, auto-detecting the format when
// none is forced.
func Parse(content string, format Format) ([]types.Utterance, error) {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return nil, &types.InputError{Msg: "empty transcript"}
	}
	if format == FormatAuto {
		format = detect(content)
	}

	var (
		entries []types.Utterance
		err     error
	)
	switch format {
	case FormatSRT:
		entries, err = parseCues(content)
	case FormatVTT:
		entries, err = parseCues(stripVTTHeader(content))
	default:
		entries, err = parsePlain(content)
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &types.InputError{Msg: "no utterances found in transcript"}
	}
	return entries, nil
}

func detect(content string) Format {
	if strings.HasPrefix(content, "WEBVTT") {
		return FormatVTT
	}
	if srtLikeRE.MatchString(content) {
		return FormatSRT
	}
	return FormatPlain
}

func stripVTTHeader(content string) string {
	blocks := strings.SplitN(content, "\n\n", 2)
	if len(blocks) == 2 && strings.HasPrefix(blocks[0], "WEBVTT") {
		return blocks[1]
	}
	return strings.TrimPrefix(content, "WEBVTT")
}

// parseCues handles both SRT and (header-stripped) VTT: numbered or bare cue
// blocks separated by blank lines.
func parseCues(content string) ([]types.Utterance, error) {
	var out []types.Utterance
	for _, block := range strings.Split(content, "\n\n") {
		lines := splitNonEmpty(block)
		if len(lines) < 2 {
			continue
		}
		cueIdx := -1
		var start, end time.Duration
		for i, ln := range lines {
			if m := srtCueRE.FindStringSubmatch(ln); m != nil {
				var err error
				if start, err = parseTimestamp(m[1]); err != nil {
					return nil, &types.InputError{Msg: "bad cue start: " + m[1]}
				}
				if end, err = parseTimestamp(m[2]); err != nil {
					return nil, &types.InputError{Msg: "bad cue end: " + m[2]}
				}
				cueIdx = i
				break
			}
		}
		if cueIdx < 0 || cueIdx == len(lines)-1 {
			continue
		}
		text := strings.Join(lines[cueIdx+1:], " ")
		speaker, text := splitCueSpeaker(text)
		if text == "" {
			continue
		}
		out = append(out, types.Utterance{
			Speaker: speaker,
			Text:    text,
			Start:   start,
			End:     end,
		})
	}
	return out, nil
}

func parsePlain(content string) ([]types.Utterance, error) {
	var out []types.Utterance
	speaker := defaultSpeaker
	cursor := time.Duration(0)

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		var text string
		if m := plainTimedRE.FindStringSubmatch(line); m != nil {
			ts, err := parseTimestamp(m[1])
			if err != nil {
				return nil, &types.InputError{Msg: "bad timestamp: " + m[1]}
			}
			cursor = ts
			speaker = strings.TrimSpace(m[2])
			text = strings.TrimSpace(m[3])
		} else if m := plainSpeakerRE.FindStringSubmatch(line); m != nil {
			speaker = strings.TrimSpace(m[1])
			text = strings.TrimSpace(m[2])
		} else {
			// Continuation of the previous speaker.
			text = line
		}
		if text == "" {
			continue
		}

		dur := estimateDuration(text)
		out = append(out, types.Utterance{
			Speaker: speaker,
			Text:    text,
			Start:   cursor,
			End:     cursor + dur,
		})
		cursor += dur
	}
	return out, nil
}

// MergeBySpeaker joins consecutive utterances by the same speaker when the
// gap between them is at most maxGap.
func MergeBySpeaker(entries []types.Utterance, maxGap time.Duration) []types.Utterance {
	if len(entries) == 0 {
		return nil
	}
	out := make([]types.Utterance, 0, len(entries))
	cur := entries[0]
	for _, e := range entries[1:] {
		if e.Speaker == cur.Speaker && e.Start-cur.End <= maxGap {
			cur.End = e.End
			cur.Text += " " + e.Text
			continue
		}
		out = append(out, cur)
		cur = e
	}
	return append(out, cur)
}

func estimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	sec := float64(words) / wordsPerMinute * 60.0
	return time.Duration(sec * float64(time.Second))
}

func splitCueSpeaker(text string) (string, string) {
	if m := cueSpeakerRE.FindStringSubmatch(text); m != nil {
		for _, s := range m[1:4] {
			if s != "" {
				return strings.TrimSpace(s), strings.TrimSpace(m[4])
			}
		}
	}
	return defaultSpeaker, strings.TrimSpace(text)
}

// parseTimestamp accepts HH:MM:SS, MM:SS and SS forms, with an optional
// fractional part separated by "." or "," (SRT style).
func parseTimestamp(s string) (time.Duration, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	parts := strings.Split(s, ":")
	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, err
		}
		total = total*60 + v
	}
	return time.Duration(total * float64(time.Second)), nil
}

func splitNonEmpty(block string) []string {
	var out []string
	for _, ln := range strings.Split(block, "\n") {
		if t := strings.TrimSpace(ln); t != "" {
			out = append(out, t)
		}
	}
	return out
}
