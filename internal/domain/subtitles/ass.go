// Package subtitles renders a clip's caption sequence to subtitle formats:
// ASS for burned-in vertical-video captions, SRT for soft mov_text tracks.
package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/reelcut/reelcut/internal/types"
)

// emphasisColor is the ASS override applied to emphasized words.
const emphasisColor = `{\c&H00D2FF&}`
const resetColor = `{\c&HFFFFFF&}`

// RenderASS renders captions (clip-relative offsets) as an ASS script styled
// for vertical short-form video.
func RenderASS(caps []types.Caption) string {
	var b strings.Builder
	b.WriteString(assHeader())
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range caps {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(c.StartOffset))
		b.WriteString(",")
		b.WriteString(assTime(c.EndOffset))
		b.WriteString(",Reel,,0,0,0,,")
		b.WriteString(eventText(c))
		b.WriteString("\n")
	}
	return b.String()
}

// eventText highlights emphasized words inline. Matching is case-insensitive
// on whole words; unmatched emphasis entries are ignored.
func eventText(c types.Caption) string {
	text := sanitizeASS(c.Text)
	if len(c.Emphasis) == 0 {
		return text
	}
	emph := make(map[string]bool, len(c.Emphasis))
	for _, e := range c.Emphasis {
		emph[strings.ToLower(strings.TrimSpace(e))] = true
	}
	words := strings.Fields(text)
	for i, w := range words {
		key := strings.ToLower(strings.Trim(w, ".,!?;:\""))
		if emph[key] {
			words[i] = emphasisColor + w + resetColor
		}
	}
	return strings.Join(words, " ")
}

func assHeader() string {
	return strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: 1080
PlayResY: 1920
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Reel, Inter, 84, &H00FFFFFF, &H00FFD200, &H00000000, &H64000000, 1,0,0,0,100,100,0,0,1,6,2,2, 80,80,220,1
`)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}
