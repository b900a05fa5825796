package transcript

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/reelcut/reelcut/internal/types"
)

func TestParse_PlainTimestamped(t *testing.T) {
	t.Parallel()

	content := `
[00:00:15] Joe Rogan: So you're telling me that AI is going to change everything?
[00:00:20] Elon Musk: Absolutely. I think AI is the most important thing humanity has ever worked on.
[00:00:28] Joe Rogan: That's a bold statement. Why do you think that?
`
	got, err := Parse(content, FormatAuto)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 utterances, got %d", len(got))
	}
	if got[0].Speaker != "Joe Rogan" {
		t.Fatalf("unexpected speaker: %q", got[0].Speaker)
	}
	if got[0].Start != 15*time.Second {
		t.Fatalf("unexpected start: %s", got[0].Start)
	}
	if got[1].Start != 20*time.Second {
		t.Fatalf("unexpected second start: %s", got[1].Start)
	}
	if got[0].End <= got[0].Start {
		t.Fatalf("estimated end must be after start")
	}
}

func TestParse_PlainContinuationKeepsSpeaker(t *testing.T) {
	t.Parallel()

	content := "Host: First line of thought\nand this continues the same idea"
	got, err := Parse(content, FormatAuto)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(got))
	}
	if got[1].Speaker != "Host" {
		t.Fatalf("continuation should inherit speaker, got %q", got[1].Speaker)
	}
}

func TestParse_SRT(t *testing.T) {
	t.Parallel()

	content := `1
00:00:01,000 --> 00:00:04,000
[Guest]: We shipped it in a weekend.

2
00:00:04,500 --> 00:00:07,250
Nobody believed it would work.
`
	got, err := Parse(content, FormatAuto)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(got))
	}
	if got[0].Speaker != "Guest" {
		t.Fatalf("unexpected speaker: %q", got[0].Speaker)
	}
	if got[0].Text != "We shipped it in a weekend." {
		t.Fatalf("unexpected text: %q", got[0].Text)
	}
	if got[1].Speaker != "Unknown" {
		t.Fatalf("missing speaker should default to Unknown, got %q", got[1].Speaker)
	}
	if got[1].Start != 4500*time.Millisecond || got[1].End != 7250*time.Millisecond {
		t.Fatalf("unexpected cue times: %s-%s", got[1].Start, got[1].End)
	}
}

func TestParse_VTT(t *testing.T) {
	t.Parallel()

	content := `WEBVTT

00:00:02.350 --> 00:00:05.000
<v Ada> The compiler is the easy part.

00:00:05.000 --> 00:00:08.000
The hard part is the people.
`
	got, err := Parse(content, FormatAuto)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(got))
	}
	if got[0].Speaker != "Ada" {
		t.Fatalf("unexpected speaker: %q", got[0].Speaker)
	}
	if got[0].Start != 2350*time.Millisecond {
		t.Fatalf("unexpected start: %s", got[0].Start)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	t.Parallel()

	_, err := Parse("   \n\n  ", FormatAuto)
	if err == nil {
		t.Fatal("expected error for empty transcript")
	}
	var inputErr *types.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %T", err)
	}
}

func TestMergeBySpeaker(t *testing.T) {
	t.Parallel()

	entries := []types.Utterance{
		{Speaker: "A", Text: "one", Start: 0, End: 2 * time.Second},
		{Speaker: "A", Text: "two", Start: 3 * time.Second, End: 5 * time.Second},
		{Speaker: "B", Text: "three", Start: 5 * time.Second, End: 8 * time.Second},
		{Speaker: "A", Text: "four", Start: 20 * time.Second, End: 22 * time.Second},
	}
	got := MergeBySpeaker(entries, 2*time.Second)
	if len(got) != 3 {
		t.Fatalf("expected 3 merged utterances, got %d", len(got))
	}
	if got[0].Text != "one two" || got[0].End != 5*time.Second {
		t.Fatalf("unexpected merge result: %+v", got[0])
	}
}

func TestParseTimestampForms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Duration
	}{
		{"00:00:04,000", 4 * time.Second},
		{"01:02:03.500", time.Hour + 2*time.Minute + 3*time.Second + 500*time.Millisecond},
		{"02:30", 2*time.Minute + 30*time.Second},
		{"45", 45 * time.Second},
	}
	for _, tc := range cases {
		got, err := parseTimestamp(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	if f := detect("WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nhi"); f != FormatVTT {
		t.Fatalf("expected vtt, got %q", f)
	}
	if f := detect("1\n00:00:01,000 --> 00:00:02,000\nhi"); f != FormatSRT {
		t.Fatalf("expected srt, got %q", f)
	}
	if f := detect(strings.TrimSpace("[00:00:01] A: hi")); f != FormatPlain {
		t.Fatalf("expected plain, got %q", f)
	}
}
