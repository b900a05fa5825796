package analyze

import (
	"fmt"
	"strings"
	"time"

	"github.com/reelcut/reelcut/internal/types"
)

// Span is a chunk together with the utterances that make it up. No two
// spans share an utterance and every utterance lands in exactly one span.
type Span struct {
	Chunk types.Chunk
	Utts  []types.Utterance
}

// Partition greedily accumulates utterances into chunks. A chunk is cut once
// its running duration is at least minDur and a sentence or speaker-turn
// boundary is available, or unconditionally once adding the next utterance
// would push it past maxDur. The final chunk of the transcript may come out
// shorter than minDur.
func Partition(utts []types.Utterance, minDur, maxDur time.Duration) []Span {
	if len(utts) == 0 {
		return nil
	}

	var spans []Span
	begin := 0
	for i := range utts {
		dur := utts[i].End - utts[begin].Start
		last := i == len(utts)-1

		cut := false
		switch {
		case last:
			cut = true
		case dur >= maxDur:
			// Utterances never split, so one long utterance can push a chunk
			// past maxDur; the overshoot is bounded by that utterance's length.
			cut = true
		case dur >= minDur && boundaryAfter(utts, i):
			cut = true
		case dur >= minDur && utts[i+1].End-utts[begin].Start > maxDur:
			// No clean boundary in reach; cutting here beats blowing the cap.
			cut = true
		}
		if cut {
			spans = append(spans, makeSpan(len(spans), utts[begin:i+1]))
			begin = i + 1
		}
	}
	return spans
}

// boundaryAfter reports whether utterance i ends a sentence or the speaker
// changes right after it.
func boundaryAfter(utts []types.Utterance, i int) bool {
	text := strings.TrimSpace(utts[i].Text)
	if text != "" {
		switch text[len(text)-1] {
		case '.', '!', '?':
			return true
		}
	}
	return i+1 < len(utts) && utts[i+1].Speaker != utts[i].Speaker
}

func makeSpan(idx int, utts []types.Utterance) Span {
	chunk := types.Chunk{
		ID:       fmt.Sprintf("chunk_%02d", idx+1),
		Start:    utts[0].Start,
		End:      utts[len(utts)-1].End,
		Speakers: uniqueSpeakers(utts),
	}
	cp := make([]types.Utterance, len(utts))
	copy(cp, utts)
	return Span{Chunk: chunk, Utts: cp}
}

func uniqueSpeakers(utts []types.Utterance) []string {
	seen := make(map[string]bool, 4)
	var out []string
	for _, u := range utts {
		if !seen[u.Speaker] {
			seen[u.Speaker] = true
			out = append(out, u.Speaker)
		}
	}
	return out
}

// Excerpt renders a span's utterances the way oracle prompts expect them:
// "[MM:SS] Speaker: text" per line.
func Excerpt(utts []types.Utterance) string {
	var b strings.Builder
	for _, u := range utts {
		total := int(u.Start / time.Second)
		fmt.Fprintf(&b, "[%02d:%02d] %s: %s\n", total/60, total%60, u.Speaker, u.Text)
	}
	return b.String()
}
