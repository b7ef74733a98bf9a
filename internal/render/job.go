package render

import (
	"strconv"
	"strings"
)

// Job is one compiled, validated render. It is built by Compile and is not
// modified afterwards.
type Job struct {
	Graph      *Graph
	OutputPath string
	Settings   Settings
	Frames     []int // per scene, in timeline order
}

// FrameCount is the total number of video frames the job produces.
func (j *Job) FrameCount() int {
	total := 0
	for _, n := range j.Frames {
		total += n
	}
	return total
}

// DurationSec is the video length implied by FrameCount.
func (j *Job) DurationSec() float64 {
	if j.Settings.FPS <= 0 {
		return 0
	}
	return float64(j.FrameCount()) / float64(j.Settings.FPS)
}

// Args returns the full ffmpeg argument list, without the binary name.
func (j *Job) Args() []string {
	s := j.Settings
	args := make([]string, 0, 32+2*len(j.Graph.Inputs))

	// --- Preamble ---
	args = append(args, "-y", "-hide_banner", "-nostdin")

	// --- Inputs ---
	for _, in := range j.Graph.Inputs {
		args = append(args, "-i", in.Path)
	}

	// --- Graph and maps ---
	args = append(args, "-filter_complex", j.Graph.String())
	for _, out := range j.Graph.Outputs {
		args = append(args, "-map", out.MapArg())
	}

	// --- Video encode ---
	args = append(args, "-c:v", s.VideoCodec, "-pix_fmt", s.PixFmt, "-r", strconv.Itoa(s.FPS))
	if s.Preset != "" {
		args = append(args, "-preset", s.Preset)
	}
	if s.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(s.CRF))
	}

	// --- Audio encode ---
	args = append(args, "-c:a", s.AudioCodec, "-b:a", s.AudioBitrate)

	// --- Container ---
	args = append(args, "-shortest", "-movflags", "+faststart", j.OutputPath)
	return args
}

// CommandLine renders bin and Args as a shell-like string for logs and dry runs.
func (j *Job) CommandLine(bin string) string {
	parts := append([]string{bin}, j.Args()...)
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " '\"[];,=|$") {
			parts[i] = "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
		}
	}
	return strings.Join(parts, " ")
}
