// Package ffmpeg adapts the ffmpeg/ffprobe binaries to the VideoTool port.
// All video decoding and encoding happens out of process; this package only
// builds argument lists and parses tool output.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/reelcut/reelcut/internal/ports"
	"github.com/reelcut/reelcut/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	preset  string
	crf     int
}

var _ ports.VideoTool = (*Adapter)(nil)

func New(ffmpegPath, ffprobePath, preset string, crf int) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if preset == "" {
		preset = "veryfast"
	}
	if crf <= 0 {
		crf = 18
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, preset: preset, crf: crf}
}

// Probe reads the first video stream's geometry, frame rate, and the
// container duration.
func (a *Adapter) Probe(ctx context.Context, path string) (ports.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate:format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("ffprobe %s: %w\n%s", path, err, string(b))
	}
	info, err := parseProbeOutput(string(b))
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return info, nil
}

func parseProbeOutput(out string) (ports.MediaInfo, error) {
	var info ports.MediaInfo
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			info.Width, _ = strconv.Atoi(val)
		case "height":
			info.Height, _ = strconv.Atoi(val)
		case "r_frame_rate":
			info.FPS = parseFrameRate(val)
		case "duration":
			sec, err := strconv.ParseFloat(val, 64)
			if err == nil {
				info.Duration = time.Duration(sec * float64(time.Second))
			}
		}
	}
	if info.Width <= 0 || info.Height <= 0 {
		return info, fmt.Errorf("no video stream geometry in output")
	}
	if info.FPS <= 0 {
		return info, fmt.Errorf("unusable frame rate in output")
	}
	if info.Duration <= 0 {
		return info, fmt.Errorf("no container duration in output")
	}
	return info, nil
}

// parseFrameRate handles the "30000/1001" fraction form ffprobe reports,
// rounding to the nearest integer rate.
func parseFrameRate(s string) int {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return int(math.Round(n / d))
}

// SampleFrames decodes grayscale frames across [start, end) at the given
// stride and streams them to fn. Frame indexes are source frame numbers.
func (a *Adapter) SampleFrames(ctx context.Context, path string, start, end time.Duration, stride int, fn func(ports.Frame) error) error {
	if stride <= 0 {
		stride = 1
	}
	info, err := a.Probe(ctx, path)
	if err != nil {
		return err
	}

	args := []string{
		"-v", "error",
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-i", path,
		"-vf", fmt.Sprintf(`select=not(mod(n\,%d)),format=gray`, stride),
		"-vsync", "vfr",
		"-f", "rawvideo",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg sample frames: %w", err)
	}

	startFrame := int(math.Round(types.Seconds(start) * float64(info.FPS)))
	frameBytes := info.Width * info.Height
	r := bufio.NewReaderSize(stdout, frameBytes)
	buf := make([]byte, frameBytes)
	var fnErr error
	for i := 0; ; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			fnErr = err
			break
		}
		pixels := make([]uint8, frameBytes)
		copy(pixels, buf)
		if err := fn(ports.Frame{
			Index:  startFrame + i*stride,
			Width:  info.Width,
			Height: info.Height,
			Pixels: pixels,
		}); err != nil {
			fnErr = err
			break
		}
	}
	if fnErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fnErr
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg sample frames: %w\n%s", err, stderr.String())
	}
	return nil
}

// Execute renders one plan to outPath. The crop timeline is expressed as a
// frame-indexed expression on a single crop filter so the whole clip renders
// in one ffmpeg invocation.
func (a *Adapter) Execute(ctx context.Context, plan types.RenderPlan, subtitlePath, outPath string) error {
	if len(plan.Entries) == 0 {
		return fmt.Errorf("render plan for %s has no entries", plan.Source)
	}
	args := a.executeArgs(plan, subtitlePath, outPath)
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg render: %w\n%s", err, tail(string(b), 2000))
	}
	return nil
}

func (a *Adapter) executeArgs(plan types.RenderPlan, subtitlePath, outPath string) []string {
	args := []string{
		"-y",
		"-ss", fmtSeconds(plan.Start),
		"-to", fmtSeconds(plan.End),
		"-i", plan.Source,
	}
	softSubs := subtitlePath != "" && !plan.BurnCaptions
	if softSubs {
		args = append(args, "-i", subtitlePath)
	}

	var vf []string
	vf = append(vf, cropFilter(plan))
	vf = append(vf, fmt.Sprintf("scale=%d:%d", plan.TargetW, plan.TargetH))
	if subtitlePath != "" && plan.BurnCaptions {
		vf = append(vf, "ass="+escapeFilterPath(subtitlePath))
	}
	vf = append(vf, "format=yuv420p")
	args = append(args, "-vf", strings.Join(vf, ","))

	if softSubs {
		args = append(args,
			"-map", "0:v", "-map", "0:a?", "-map", "1:0",
			"-c:s", "mov_text",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", a.preset,
		"-crf", strconv.Itoa(a.crf),
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		outPath,
	)
	return args
}

// cropFilter renders the plan's crop timeline as nested frame-number
// conditionals. Frame numbers restart at zero after the input seek, so plan
// frames are rebased against the plan start.
func cropFilter(plan types.RenderPlan) string {
	first := plan.Entries[0].Crop
	if len(plan.Entries) == 1 {
		return fmt.Sprintf("crop=%d:%d:%d:%d", first.W, first.H, first.X, first.Y)
	}
	base := plan.Entries[0].Frames.From
	xExpr := strconv.Itoa(plan.Entries[len(plan.Entries)-1].Crop.X)
	yExpr := strconv.Itoa(plan.Entries[len(plan.Entries)-1].Crop.Y)
	for i := len(plan.Entries) - 2; i >= 0; i-- {
		e := plan.Entries[i]
		to := e.Frames.To - base
		xExpr = fmt.Sprintf(`if(lt(n\,%d)\,%d\,%s)`, to, e.Crop.X, xExpr)
		yExpr = fmt.Sprintf(`if(lt(n\,%d)\,%d\,%s)`, to, e.Crop.Y, yExpr)
	}
	return fmt.Sprintf("crop=%d:%d:'%s':'%s'", first.W, first.H, xExpr, yExpr)
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	return p
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
