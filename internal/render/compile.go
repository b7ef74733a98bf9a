package render

import (
	"fmt"
	"os"
	"strconv"

	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/timeline"
)

// Settings are the output parameters shared by every job of a run.
type Settings struct {
	Width         int
	Height        int
	FPS           int
	ZoomMax       float64
	PrescaleWidth int
	BGMVolume     float64
	VideoCodec    string
	PixFmt        string
	Preset        string
	CRF           int
	AudioCodec    string
	AudioBitrate  string
}

// SettingsFromConfig extracts the render settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Width:         cfg.Video.Width,
		Height:        cfg.Video.Height,
		FPS:           cfg.Video.FPS,
		ZoomMax:       cfg.Zoom.Max,
		PrescaleWidth: cfg.Zoom.PrescaleWidth,
		BGMVolume:     cfg.Audio.BGMVolume,
		VideoCodec:    cfg.Video.Codec,
		PixFmt:        cfg.Video.PixFmt,
		Preset:        cfg.Video.Preset,
		CRF:           cfg.Video.CRF,
		AudioCodec:    cfg.Audio.Codec,
		AudioBitrate:  cfg.Audio.Bitrate,
	}
}

func (s Settings) frame() Format {
	return Format{Width: s.Width, Height: s.Height, FPS: s.FPS}
}

// SceneInput is one reconciled scene with its rendered caption layer.
type SceneInput struct {
	ImagePath   string
	CaptionPath string
	DurationSec float64
}

// CompileSpec is everything one render consumes.
type CompileSpec struct {
	Scenes        []SceneInput
	NarrationPath string
	BGMPath       string // empty renders narration only
	OutputPath    string
}

// Compile builds and validates the filter graph for one story and returns
// the job ready to hand to the encoder. It fails before building anything
// if an input file is missing.
func Compile(spec CompileSpec, s Settings) (*Job, error) {
	if len(spec.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	if spec.OutputPath == "" {
		return nil, fmt.Errorf("compile: empty output path")
	}
	if err := checkAssets(spec); err != nil {
		return nil, err
	}

	frame := s.frame()
	g := &Graph{Frame: frame}
	frames := make([]int, len(spec.Scenes))

	// --- Audio inputs ---
	g.Inputs = append(g.Inputs, Input{Path: spec.NarrationPath, Kind: Audio})
	narration := InputStream(0, Audio)
	bgmIdx := -1
	if spec.BGMPath != "" {
		bgmIdx = len(g.Inputs)
		g.Inputs = append(g.Inputs, Input{Path: spec.BGMPath, Kind: Audio})
	}

	// --- Scene segments ---
	segments := make([]Stream, 0, len(spec.Scenes))
	for i, sc := range spec.Scenes {
		n := timeline.FrameCount(sc.DurationSec, s.FPS)
		frames[i] = n

		imgIdx := len(g.Inputs)
		g.Inputs = append(g.Inputs, Input{Path: sc.ImagePath, Kind: Video})
		capIdx := len(g.Inputs)
		g.Inputs = append(g.Inputs, Input{Path: sc.CaptionPath, Kind: Video})

		zoomed := Labeled(fmt.Sprintf("z%d", i), Video)
		caption := Labeled(fmt.Sprintf("c%d", i), Video)
		segment := Labeled(fmt.Sprintf("v%d", i), Video)

		g.Nodes = append(g.Nodes,
			Node{
				In:     []Stream{InputStream(imgIdx, Video)},
				Chain:  kenBurns(s, n),
				Out:    zoomed,
				Format: &frame,
			},
			Node{
				In: []Stream{InputStream(capIdx, Video)},
				Chain: []Filter{
					F("scale", strconv.Itoa(s.Width), strconv.Itoa(s.Height)),
					F("format", "rgba"),
				},
				Out:    caption,
				Format: &frame,
			},
			Node{
				In: []Stream{zoomed, caption},
				Chain: []Filter{
					F("overlay", "0", "0", "eof_action=repeat", "format=auto"),
					F("trim", "end_frame="+strconv.Itoa(n)),
					F("setpts", "PTS-STARTPTS"),
					F("format", s.PixFmt),
				},
				Out:    segment,
				Format: &frame,
			},
		)
		segments = append(segments, segment)
	}

	vout := Labeled("vout", Video)
	g.Nodes = append(g.Nodes, Node{
		In:     segments,
		Chain:  []Filter{F("concat", "n="+strconv.Itoa(len(segments)), "v=1", "a=0")},
		Out:    vout,
		Format: &frame,
	})

	// --- Audio mix ---
	audioOut := narration
	if bgmIdx >= 0 {
		bed := Labeled("bgm", Audio)
		aout := Labeled("aout", Audio)
		g.Nodes = append(g.Nodes,
			Node{
				In: []Stream{InputStream(bgmIdx, Audio)},
				Chain: []Filter{
					F("volume", strconv.FormatFloat(s.BGMVolume, 'f', -1, 64)),
					F("aloop", "loop=-1", "size=2e+09"),
				},
				Out: bed,
			},
			Node{
				In:    []Stream{narration, bed},
				Chain: []Filter{F("amix", "inputs=2", "duration=first", "dropout_transition=2")},
				Out:   aout,
			},
		)
		audioOut = aout
	}
	g.Outputs = []Stream{vout, audioOut}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Job{
		Graph:      g,
		OutputPath: spec.OutputPath,
		Settings:   s,
		Frames:     frames,
	}, nil
}

// kenBurns scales the still to cover the prescale canvas, then zooms slowly
// toward the centre over exactly frames output frames.
func kenBurns(s Settings, frames int) []Filter {
	pw := s.PrescaleWidth
	ph := even(pw * s.Height / s.Width)
	step := (s.ZoomMax - 1) / float64(frames)
	size := fmt.Sprintf("%dx%d", s.Width, s.Height)

	return []Filter{
		F("scale", strconv.Itoa(pw), strconv.Itoa(ph), "force_original_aspect_ratio=increase"),
		F("crop", strconv.Itoa(pw), strconv.Itoa(ph)),
		F("zoompan",
			fmt.Sprintf("z='min(1+%.6f*on,%.3f)'", step, s.ZoomMax),
			"d="+strconv.Itoa(frames),
			"x='iw/2-(iw/zoom/2)'",
			"y='ih/2-(ih/zoom/2)'",
			"s="+size,
			"fps="+strconv.Itoa(s.FPS),
		),
		F("setsar", "1"),
	}
}

func even(n int) int {
	return n &^ 1
}

func checkAssets(spec CompileSpec) error {
	if err := assetExists(spec.NarrationPath); err != nil {
		return fmt.Errorf("%w: narration: %v", ErrMissingAsset, err)
	}
	if spec.BGMPath != "" {
		if err := assetExists(spec.BGMPath); err != nil {
			return fmt.Errorf("%w: background music: %v", ErrMissingAsset, err)
		}
	}
	for i, sc := range spec.Scenes {
		if err := assetExists(sc.ImagePath); err != nil {
			return fmt.Errorf("%w: scene %d image: %v", ErrMissingAsset, i, err)
		}
		if err := assetExists(sc.CaptionPath); err != nil {
			return fmt.Errorf("%w: scene %d caption: %v", ErrMissingAsset, i, err)
		}
	}
	return nil
}

func assetExists(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
