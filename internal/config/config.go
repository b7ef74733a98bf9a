package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, e.g. SHORTS_VIDEO_FPS.
const EnvPrefix = "SHORTS"

type Config struct {
	Video     VideoConfig     `yaml:"video" envconfig:"video"`
	Audio     AudioConfig     `yaml:"audio" envconfig:"audio"`
	Timeline  TimelineConfig  `yaml:"timeline" envconfig:"timeline"`
	Zoom      ZoomConfig      `yaml:"zoom" envconfig:"zoom"`
	Captions  CaptionsConfig  `yaml:"captions" envconfig:"captions"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail" envconfig:"thumbnail"`
	Encoder   EncoderConfig   `yaml:"encoder" envconfig:"encoder"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"paths"`
	Batch     BatchConfig     `yaml:"batch" envconfig:"batch"`
	Log       LogConfig       `yaml:"log" envconfig:"log"`
	Metrics   MetricsConfig   `yaml:"metrics" envconfig:"metrics"`
}

type VideoConfig struct {
	Width  int    `yaml:"width" envconfig:"width"`
	Height int    `yaml:"height" envconfig:"height"`
	FPS    int    `yaml:"fps" envconfig:"fps"`
	Codec  string `yaml:"codec" envconfig:"codec"`
	PixFmt string `yaml:"pix_fmt" envconfig:"pix_fmt"`
	Preset string `yaml:"preset" envconfig:"preset"` // empty leaves the encoder default
	CRF    int    `yaml:"crf" envconfig:"crf"`       // 0 leaves the encoder default
}

type AudioConfig struct {
	Codec     string  `yaml:"codec" envconfig:"codec"`
	Bitrate   string  `yaml:"bitrate" envconfig:"bitrate"`
	BGMVolume float64 `yaml:"bgm_volume" envconfig:"bgm_volume"`
}

type TimelineConfig struct {
	FloorSec   float64 `yaml:"floor_sec" envconfig:"floor_sec"`
	EpsilonSec float64 `yaml:"epsilon_sec" envconfig:"epsilon_sec"`
}

type ZoomConfig struct {
	Max           float64 `yaml:"max" envconfig:"max"`
	PrescaleWidth int     `yaml:"prescale_width" envconfig:"prescale_width"`
}

type CaptionsConfig struct {
	FontPath     string `yaml:"font_path" envconfig:"font_path"`
	FontSize     int    `yaml:"font_size" envconfig:"font_size"`
	MinFontSize  int    `yaml:"min_font_size" envconfig:"min_font_size"`
	LineHeight   int    `yaml:"line_height" envconfig:"line_height"`
	WrapWidth    int    `yaml:"wrap_width" envconfig:"wrap_width"`
	BottomOffset int    `yaml:"bottom_offset" envconfig:"bottom_offset"`
	TopMargin    int    `yaml:"top_margin" envconfig:"top_margin"`
	StrokeWidth  int    `yaml:"stroke_width" envconfig:"stroke_width"`
	Color        string `yaml:"color" envconfig:"color"`
	StrokeColor  string `yaml:"stroke_color" envconfig:"stroke_color"`
}

type ThumbnailConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"enabled"`
	FontSize    int    `yaml:"font_size" envconfig:"font_size"`
	WrapWidth   int    `yaml:"wrap_width" envconfig:"wrap_width"`
	StrokeWidth int    `yaml:"stroke_width" envconfig:"stroke_width"`
	Color       string `yaml:"color" envconfig:"color"`
}

type EncoderConfig struct {
	FFmpegBin  string `yaml:"ffmpeg_bin" envconfig:"ffmpeg_bin"`
	FFprobeBin string `yaml:"ffprobe_bin" envconfig:"ffprobe_bin"`
	Verbose    bool   `yaml:"verbose" envconfig:"verbose"`
}

type PathsConfig struct {
	BGMDir    string `yaml:"bgm_dir" envconfig:"bgm_dir"`
	TempDir   string `yaml:"temp_dir" envconfig:"temp_dir"`
	OutputDir string `yaml:"output_dir" envconfig:"output_dir"`
}

type BatchConfig struct {
	Concurrency int `yaml:"concurrency" envconfig:"concurrency"`
}

type LogConfig struct {
	Level      string `yaml:"level" envconfig:"level"`
	Encoding   string `yaml:"encoding" envconfig:"encoding"`
	OutputPath string `yaml:"output_path" envconfig:"output_path"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" envconfig:"pushgateway_url"`
	JobName        string `yaml:"job_name" envconfig:"job_name"`
}

// DefaultConfig returns the settings used when no config file overrides them.
func DefaultConfig() *Config {
	return &Config{
		Video: VideoConfig{
			Width:  1080,
			Height: 1920,
			FPS:    30,
			Codec:  "libx264",
			PixFmt: "yuv420p",
		},
		Audio: AudioConfig{
			Codec:     "aac",
			Bitrate:   "192k",
			BGMVolume: 0.1,
		},
		Timeline: TimelineConfig{
			FloorSec:   2.0,
			EpsilonSec: 0.3,
		},
		Zoom: ZoomConfig{
			Max:           1.5,
			PrescaleWidth: 2160,
		},
		Captions: CaptionsConfig{
			FontPath:     "assets/fonts/NotoSansDevanagari-Bold.ttf",
			FontSize:     60,
			MinFontSize:  36,
			LineHeight:   70,
			WrapWidth:    30,
			BottomOffset: 400,
			TopMargin:    120,
			StrokeWidth:  7,
			Color:        "#FFFF00",
			StrokeColor:  "#000000",
		},
		Thumbnail: ThumbnailConfig{
			Enabled:     true,
			FontSize:    100,
			WrapWidth:   16,
			StrokeWidth: 5,
			Color:       "#FFFFFF",
		},
		Encoder: EncoderConfig{
			FFmpegBin:  "ffmpeg",
			FFprobeBin: "ffprobe",
		},
		Paths: PathsConfig{
			BGMDir:    "assets/bgm",
			TempDir:   "temp",
			OutputDir: "output",
		},
		Batch: BatchConfig{Concurrency: 1},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{JobName: "shorts_render"},
	}
}

// Load reads a YAML config file over the defaults, then applies SHORTS_*
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks that all numeric settings are usable.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Video.Width > 0 && c.Video.Height > 0, "video.width and video.height must be positive")
	check(c.Video.Width%2 == 0 && c.Video.Height%2 == 0, "video.width and video.height must be even for yuv420p")
	check(c.Video.FPS > 0, "video.fps must be positive")
	check(c.Video.CRF >= 0 && c.Video.CRF <= 51, "video.crf must be within 0..51")
	check(c.Audio.BGMVolume > 0 && c.Audio.BGMVolume <= 1, "audio.bgm_volume must be within (0,1]")
	check(c.Timeline.FloorSec > 0, "timeline.floor_sec must be positive")
	check(c.Timeline.EpsilonSec >= 0, "timeline.epsilon_sec must not be negative")
	check(c.Zoom.Max > 1, "zoom.max must be greater than 1")
	check(c.Zoom.PrescaleWidth >= c.Video.Width, "zoom.prescale_width must be at least video.width")
	check(c.Captions.FontSize > 0 && c.Captions.LineHeight > 0, "captions.font_size and captions.line_height must be positive")
	check(c.Captions.MinFontSize > 0 && c.Captions.MinFontSize <= c.Captions.FontSize, "captions.min_font_size must be within (0, font_size]")
	check(c.Captions.WrapWidth > 0, "captions.wrap_width must be positive")
	check(c.Captions.StrokeWidth >= 0, "captions.stroke_width must not be negative")
	check(c.Batch.Concurrency > 0, "batch.concurrency must be positive")
	check(c.Encoder.FFmpegBin != "" && c.Encoder.FFprobeBin != "", "encoder binaries must be set")
	check(c.Paths.TempDir != "" && c.Paths.OutputDir != "", "paths.temp_dir and paths.output_dir must be set")
	if c.Thumbnail.Enabled {
		check(c.Thumbnail.FontSize > 0 && c.Thumbnail.WrapWidth > 0, "thumbnail.font_size and thumbnail.wrap_width must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
