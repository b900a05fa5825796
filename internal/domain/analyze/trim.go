package analyze

import (
	"strings"
	"time"

	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/types"
)

// TrimPolicy turns a selected chunk plus an oracle hint into a refined
// interval. The returned interval must stay within the chunk expanded by at
// most pad on each side; the caller clamps and rejects out-of-band results.
type TrimPolicy interface {
	Trim(span Span, hint ports.RefineJudgment, pad time.Duration) (start, end time.Duration)
}

// BoundaryTrim is the default policy: adopt the oracle hint when it is sane,
// snapped to utterance boundaries; otherwise shave leading and trailing
// filler utterances off the chunk.
type BoundaryTrim struct{}

func (BoundaryTrim) Trim(span Span, hint ports.RefineJudgment, pad time.Duration) (time.Duration, time.Duration) {
	lo := span.Chunk.Start - pad
	hi := span.Chunk.End + pad
	if lo < 0 {
		lo = 0
	}

	if hint.End > hint.Start && hint.Start >= lo && hint.End <= hi {
		return snapToBoundaries(span.Utts, hint.Start, hint.End)
	}

	utts := span.Utts
	first, last := 0, len(utts)-1
	for first < last && isFiller(utts[first].Text) {
		first++
	}
	for last > first && isFiller(utts[last].Text) {
		last--
	}
	return utts[first].Start, utts[last].End
}

// snapToBoundaries moves the hinted interval to the closest enclosing
// utterance edges so clips never start or stop mid-word.
func snapToBoundaries(utts []types.Utterance, start, end time.Duration) (time.Duration, time.Duration) {
	bestStart := utts[0].Start
	bestEnd := utts[len(utts)-1].End
	for _, u := range utts {
		if absDur(u.Start-start) < absDur(bestStart-start) {
			bestStart = u.Start
		}
		if absDur(u.End-end) < absDur(bestEnd-end) {
			bestEnd = u.End
		}
	}
	if bestEnd <= bestStart {
		return utts[0].Start, utts[len(utts)-1].End
	}
	return bestStart, bestEnd
}

var fillerWords = map[string]bool{
	"um": true, "uh": true, "hmm": true, "so": true, "yeah": true,
	"okay": true, "ok": true, "right": true, "anyway": true, "well": true,
}

// isFiller flags short utterances made of hesitation words only.
func isFiller(text string) bool {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return true
	}
	if len(fields) > 3 {
		return false
	}
	for _, f := range fields {
		f = strings.Trim(f, ".,!?…")
		if f != "" && !fillerWords[f] {
			return false
		}
	}
	return true
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
