package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strconv"
	"strings"

	tsfont "github.com/go-text/typesetting/font"
	"go.uber.org/zap"

	"shorts-pipeline/internal/config"
	"shorts-pipeline/internal/logging"
)

// Style describes how one kind of text block is drawn.
type Style struct {
	FontSize    int
	MinFontSize int
	LineHeight  int
	WrapWidth   int // columns, in runes, at FontSize
	StrokeWidth int // outline radius in pixels at FontSize
	Fill        color.NRGBA
	Stroke      color.NRGBA
}

// Options configure a Renderer.
type Options struct {
	Width        int
	Height       int
	FontPath     string
	BottomOffset int // caption block sits this far above the bottom edge
	TopMargin    int
	Caption      Style
	Thumbnail    Style
}

// OptionsFromConfig builds Options from the captions and thumbnail sections.
// Invalid colors fall back to yellow on black for captions and white on
// black for thumbnails.
func OptionsFromConfig(cfg *config.Config) Options {
	c, th := cfg.Captions, cfg.Thumbnail
	black := color.NRGBA{A: 0xff}
	return Options{
		Width:        cfg.Video.Width,
		Height:       cfg.Video.Height,
		FontPath:     c.FontPath,
		BottomOffset: c.BottomOffset,
		TopMargin:    c.TopMargin,
		Caption: Style{
			FontSize:    c.FontSize,
			MinFontSize: c.MinFontSize,
			LineHeight:  c.LineHeight,
			WrapWidth:   c.WrapWidth,
			StrokeWidth: c.StrokeWidth,
			Fill:        parseHexColor(c.Color, color.NRGBA{R: 0xff, G: 0xff, A: 0xff}),
			Stroke:      parseHexColor(c.StrokeColor, black),
		},
		Thumbnail: Style{
			FontSize:    th.FontSize,
			MinFontSize: max(1, th.FontSize/2),
			LineHeight:  th.FontSize * 7 / 6,
			WrapWidth:   th.WrapWidth,
			StrokeWidth: th.StrokeWidth,
			Fill:        parseHexColor(th.Color, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}),
			Stroke:      black,
		},
	}
}

// Renderer draws caption layers and thumbnails. It is safe for concurrent
// use: faces and shapers are created per call and the parsed font is read-only.
type Renderer struct {
	opts Options
	font *tsfont.Font // nil means the bitmap fallback face is used
	log  *zap.Logger
}

// NewRenderer loads the font at opts.FontPath. A missing or unreadable font
// is not an error: the renderer falls back to a built-in bitmap face that
// only covers ASCII, and FontMissing reports true.
func NewRenderer(opts Options, log *zap.Logger) *Renderer {
	r := &Renderer{opts: opts, log: logging.Stage(log, "overlay")}

	data, err := os.ReadFile(opts.FontPath)
	if err != nil {
		r.log.Warn("caption font not found, using fallback face", zap.String("font", opts.FontPath), zap.Error(err))
		return r
	}
	face, err := tsfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		r.log.Warn("caption font unreadable, using fallback face", zap.String("font", opts.FontPath), zap.Error(err))
		return r
	}
	r.font = face.Font
	return r
}

// FontMissing reports whether the configured font could not be loaded.
func (r *Renderer) FontMissing() bool { return r.font == nil }

// missingGlyphs counts the distinct non-space runes the font has no glyph for.
func (r *Renderer) missingGlyphs(text string) int {
	if r.font == nil {
		return 0
	}
	seen := make(map[rune]bool)
	missing := 0
	for _, c := range text {
		if seen[c] || strings.TrimSpace(string(c)) == "" {
			continue
		}
		seen[c] = true
		if !glyphCovered(r.font, c) {
			missing++
		}
	}
	return missing
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA", returning def on failure.
func parseHexColor(s string, def color.NRGBA) color.NRGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return def
	}
	if len(s) == 6 {
		s += "ff"
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return def
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}
