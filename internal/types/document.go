package types

import "time"

// ClipDocument is the exported per-clip artifact: everything a downstream
// assembly tool needs, serialized with float seconds. It also carries the
// smoothed crop path so a re-render after a caption edit can rebuild the
// plan without re-running the tracker.
type ClipDocument struct {
	ClipID     string  `json:"clip_id"`
	ChunkID    string  `json:"chunk_id"`
	Source     string  `json:"source"`
	StartSec   float64 `json:"start"`
	EndSec     float64 `json:"end"`
	RefStart   float64 `json:"refined_start"`
	RefEnd     float64 `json:"refined_end"`
	RefDur     float64 `json:"refined_duration"`
	ViralScore float64 `json:"viral_score"`
	Reasoning  string  `json:"reasoning"`

	Hook        string        `json:"hook"`
	Captions    []CaptionDoc  `json:"captions"`
	ReelCaption string        `json:"reel_caption"`
	Hashtags    []string      `json:"hashtags"`
	Tone        ToneDoc       `json:"tone"`
	VisualBeats []BeatDoc     `json:"visual_beats"`
	Style       StyleDoc      `json:"style"`
	Assembly    AssemblyDoc   `json:"assembly_spec"`
	CropPath    []CropPathDoc `json:"crop_path"`

	SourceWidth  int `json:"source_width"`
	SourceHeight int `json:"source_height"`
	SourceFPS    int `json:"source_fps"`

	File      string `json:"file,omitempty"`
	Subtitles string `json:"subtitles,omitempty"`
}

type CaptionDoc struct {
	Text        string   `json:"text"`
	StartOffset float64  `json:"start_offset"`
	EndOffset   float64  `json:"end_offset"`
	Emphasis    []string `json:"emphasis"`
}

type ToneDoc struct {
	Pacing    string `json:"pacing"`
	MusicVibe string `json:"music_vibe"`
}

type BeatDoc struct {
	ImageConcept    string  `json:"image_concept"`
	TextOverlay     string  `json:"text_overlay,omitempty"`
	Motion          string  `json:"motion"`
	MotionIntensity int     `json:"motion_intensity"`
	DurationSec     float64 `json:"duration"`
}

type StyleDoc struct {
	ColorPalette []string `json:"color_palette"`
	Typography   string   `json:"typography"`
	Composition  string   `json:"composition"`
}

type AssemblyDoc struct {
	AspectRatio        string  `json:"aspect_ratio"`
	Resolution         string  `json:"resolution"`
	FPS                int     `json:"fps"`
	AudioFormat        string  `json:"audio_format"`
	VideoCodec         string  `json:"video_codec"`
	BackgroundLayer    string  `json:"background_layer"`
	AudioWaveform      bool    `json:"audio_waveform"`
	CaptionsLayer      bool    `json:"captions_layer"`
	HookOverlay        bool    `json:"hook_overlay"`
	ImageTransition    string  `json:"image_transition"`
	TransitionDuration float64 `json:"transition_duration"`
	TextAnimation      string  `json:"text_animation"`
}

// CropPathDoc is one smoothed crop-center sample, in source pixels, at the
// tracker's sampling stride.
type CropPathDoc struct {
	Frame   int     `json:"frame"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
}

// Manifest indexes one analysis run's artifacts.
type Manifest struct {
	Input    string         `json:"input"`
	RunID    string         `json:"run_id"`
	Clips    []ManifestClip `json:"clips"`
	Warnings []string       `json:"warnings,omitempty"`
}

type ManifestClip struct {
	ClipID     string  `json:"clip_id"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	ViralScore float64 `json:"viral_score"`
	Hook       string  `json:"hook"`
	Document   string  `json:"document"`
	File       string  `json:"file,omitempty"`
	Subtitles  string  `json:"subtitles,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func Seconds(d time.Duration) float64 { return float64(d) / float64(time.Second) }

func FromSeconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func CaptionsToDoc(caps []Caption) []CaptionDoc {
	out := make([]CaptionDoc, 0, len(caps))
	for _, c := range caps {
		out = append(out, CaptionDoc{
			Text:        c.Text,
			StartOffset: Seconds(c.StartOffset),
			EndOffset:   Seconds(c.EndOffset),
			Emphasis:    c.Emphasis,
		})
	}
	return out
}

func CaptionsFromDoc(docs []CaptionDoc) []Caption {
	out := make([]Caption, 0, len(docs))
	for _, d := range docs {
		out = append(out, Caption{
			Text:        d.Text,
			StartOffset: FromSeconds(d.StartOffset),
			EndOffset:   FromSeconds(d.EndOffset),
			Emphasis:    d.Emphasis,
		})
	}
	return out
}

func AssemblyToDoc(a AssemblySpec) AssemblyDoc {
	return AssemblyDoc{
		AspectRatio:        a.AspectRatio,
		Resolution:         a.Resolution,
		FPS:                a.FPS,
		AudioFormat:        a.AudioFormat,
		VideoCodec:         a.VideoCodec,
		BackgroundLayer:    a.BackgroundLayer,
		AudioWaveform:      a.AudioWaveform,
		CaptionsLayer:      a.CaptionsLayer,
		HookOverlay:        a.HookOverlay,
		ImageTransition:    a.ImageTransition,
		TransitionDuration: Seconds(a.TransitionDuration),
		TextAnimation:      a.TextAnimation,
	}
}

func AssemblyFromDoc(d AssemblyDoc) AssemblySpec {
	return AssemblySpec{
		AspectRatio:        d.AspectRatio,
		Resolution:         d.Resolution,
		FPS:                d.FPS,
		AudioFormat:        d.AudioFormat,
		VideoCodec:         d.VideoCodec,
		BackgroundLayer:    d.BackgroundLayer,
		AudioWaveform:      d.AudioWaveform,
		CaptionsLayer:      d.CaptionsLayer,
		HookOverlay:        d.HookOverlay,
		ImageTransition:    d.ImageTransition,
		TransitionDuration: FromSeconds(d.TransitionDuration),
		TextAnimation:      d.TextAnimation,
	}
}
