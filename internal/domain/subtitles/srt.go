package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/reelcut/reelcut/internal/types"
)

// RenderSRT renders captions as an SRT document for soft-subtitle muxing.
// Offsets are clip-relative already; the caller never passes absolute
// source timestamps here.
func RenderSRT(caps []types.Caption) string {
	var b strings.Builder
	for i, c := range caps {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(c.StartOffset), srtTime(c.EndOffset), strings.TrimSpace(c.Text))
	}
	return b.String()
}

func srtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	ms := int(d / time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
