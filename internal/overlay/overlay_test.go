package overlay

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-text/typesetting/language"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/goregular"

	"shorts-pipeline/internal/config"
)

func goFontPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goregular.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0644))
	return path
}

func newTestRenderer(t *testing.T, fontPath string) *Renderer {
	t.Helper()
	opts := OptionsFromConfig(config.DefaultConfig())
	opts.FontPath = fontPath
	return NewRenderer(opts, zap.NewNop())
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func alphaAt(img image.Image, x, y int) uint32 {
	_, _, _, a := img.At(x, y).RGBA()
	return a
}

// opaqueRows returns the first and last rows containing any visible pixel.
func opaqueRows(img image.Image) (first, last int) {
	b := img.Bounds()
	first, last = -1, -1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x += 3 {
			if alphaAt(img, x, y) > 0 {
				if first < 0 {
					first = y
				}
				last = y
				break
			}
		}
	}
	return first, last
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"short", "hello world", 30, []string{"hello world"}},
		{"breaks on space", "the quick brown fox jumps over the lazy dog", 15, []string{"the quick brown", "fox jumps over", "the lazy dog"}},
		{"long word", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"collapses whitespace", "  a \n\t b  ", 30, []string{"a b"}},
		{"empty", "   ", 30, nil},
		{"counts runes", "नमस्ते दुनिया", 6, []string{"नमस्ते", "दुनिया"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, tt.width))
		})
	}
}

func TestRenderCaption(t *testing.T) {
	r := newTestRenderer(t, goFontPath(t))
	require.False(t, r.FontMissing())

	out := filepath.Join(t.TempDir(), "caption.png")
	rep, err := r.RenderCaption("The detective returned to the house on the hill", out)
	require.NoError(t, err)

	img := readPNG(t, out)
	assert.Equal(t, image.Rect(0, 0, 1080, 1920), img.Bounds())
	assert.Equal(t, 2, rep.Lines)
	assert.Equal(t, 60, rep.FontSize)
	assert.Equal(t, 1920-400-2*70, rep.Y)
	assert.False(t, rep.Pinned)

	// transparent outside the text block
	assert.Zero(t, alphaAt(img, 0, 0))
	assert.Zero(t, alphaAt(img, 540, 200))
	assert.Zero(t, alphaAt(img, 540, 1900))

	first, last := opaqueRows(img)
	require.Greater(t, first, 0, "caption drew nothing")
	assert.InDelta(t, rep.Y, first, 20)
	assert.Less(t, last, 1920-400+20)
}

func TestRenderCaptionColors(t *testing.T) {
	r := newTestRenderer(t, goFontPath(t))
	out := filepath.Join(t.TempDir(), "caption.png")
	_, err := r.RenderCaption("IIIIIIII", out)
	require.NoError(t, err)

	img := readPNG(t, out)
	var sawFill, sawStroke bool
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A != 0xff {
				continue
			}
			if c.R == 0xff && c.G == 0xff && c.B == 0 {
				sawFill = true
			}
			if c.R == 0 && c.G == 0 && c.B == 0 {
				sawStroke = true
			}
		}
	}
	assert.True(t, sawFill, "yellow fill")
	assert.True(t, sawStroke, "black outline")
}

func TestRenderCaptionFallbackFont(t *testing.T) {
	r := newTestRenderer(t, filepath.Join(t.TempDir(), "missing.ttf"))
	require.True(t, r.FontMissing())

	out := filepath.Join(t.TempDir(), "caption.png")
	rep, err := r.RenderCaption("Fallback text still renders", out)
	require.NoError(t, err)

	img := readPNG(t, out)
	assert.Equal(t, 1080, img.Bounds().Dx())
	first, _ := opaqueRows(img)
	assert.Greater(t, first, 0)
	assert.Zero(t, rep.MissingGlyphs)
}

func TestRenderCaptionShrinksLongText(t *testing.T) {
	r := newTestRenderer(t, goFontPath(t))
	text := strings.Repeat("evidence ", 80)

	out := filepath.Join(t.TempDir(), "caption.png")
	rep, err := r.RenderCaption(text, out)
	require.NoError(t, err)

	assert.True(t, rep.Shrunk)
	assert.False(t, rep.Pinned)
	assert.Less(t, rep.FontSize, 60)
	assert.GreaterOrEqual(t, rep.FontSize, 36)
}

func TestRenderCaptionPinsPathologicalText(t *testing.T) {
	r := newTestRenderer(t, goFontPath(t))
	text := strings.Repeat("word ", 2000)

	out := filepath.Join(t.TempDir(), "caption.png")
	rep, err := r.RenderCaption(text, out)
	require.NoError(t, err)

	assert.True(t, rep.Pinned)
	assert.Equal(t, 36, rep.FontSize)
	assert.Equal(t, 120, rep.Y)
	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestRenderCaptionEmpty(t *testing.T) {
	r := newTestRenderer(t, goFontPath(t))
	out := filepath.Join(t.TempDir(), "caption.png")
	rep, err := r.RenderCaption("", out)
	require.NoError(t, err)
	assert.Zero(t, rep.Lines)

	first, _ := opaqueRows(readPNG(t, out))
	assert.Equal(t, -1, first)
}

func TestRenderCaptionMissingGlyphs(t *testing.T) {
	r := newTestRenderer(t, goFontPath(t))
	out := filepath.Join(t.TempDir(), "caption.png")
	// Go Regular has no Devanagari
	rep, err := r.RenderCaption("नमस्ते", out)
	require.NoError(t, err)
	assert.Positive(t, rep.MissingGlyphs)
}

func TestRenderCaptionDevanagari(t *testing.T) {
	r := newTestRenderer(t, goFontPath(t))
	out := filepath.Join(t.TempDir(), "caption.png")

	rep, err := r.RenderCaption("किताब क्षेत्र में रखी है", out)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Lines)
	assert.Positive(t, rep.MissingGlyphs)
	assert.Equal(t, image.Rect(0, 0, 1080, 1920), readPNG(t, out).Bounds())
}

func TestScriptOf(t *testing.T) {
	tests := []struct {
		text string
		want language.Script
	}{
		{"नमस्ते", language.Devanagari},
		{"2024: कि", language.Devanagari},
		{"hello", language.Latin},
		{"123 ...", language.Latin},
		{"مرحبا", language.Arabic},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, scriptOf([]rune(tt.text)))
		})
	}
}

// Amiri joins Arabic letters through GSUB, so a shaped line must use the
// contextual forms rather than the nominal glyph a cmap lookup gives.
func TestShapedFaceAppliesContextualForms(t *testing.T) {
	r := newTestRenderer(t, filepath.Join("testdata", "Amiri-Regular.ttf"))
	require.False(t, r.FontMissing())

	beh, ok := r.font.NominalGlyph('ب')
	require.True(t, ok)

	out := newShapedFace(r.font, 60).shape("ببب")
	require.NotEmpty(t, out.Glyphs)
	for _, g := range out.Glyphs {
		assert.NotEqual(t, beh, g.GlyphID)
	}
	assert.Positive(t, out.Advance.Ceil())
}

func TestRenderCaptionShapedScript(t *testing.T) {
	r := newTestRenderer(t, filepath.Join("testdata", "Amiri-Regular.ttf"))
	out := filepath.Join(t.TempDir(), "caption.png")

	rep, err := r.RenderCaption("مرحبا بالعالم", out)
	require.NoError(t, err)
	assert.Zero(t, rep.MissingGlyphs)

	first, _ := opaqueRows(readPNG(t, out))
	require.Positive(t, first, "caption drew nothing")
	assert.GreaterOrEqual(t, first, rep.Y-20)
}

func TestRenderThumbnail(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 1600, 900))
	for y := 0; y < 900; y++ {
		for x := 0; x < 1600; x++ {
			src.Set(x, y, color.RGBA{R: 40, G: 60, B: 200, A: 0xff})
		}
	}
	in := filepath.Join(dir, "scene.jpg")
	f, err := os.Create(in)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, src, nil))
	require.NoError(t, f.Close())

	r := newTestRenderer(t, goFontPath(t))
	out := filepath.Join(dir, "thumb.png")
	require.NoError(t, r.RenderThumbnail(in, "The Vanishing", out))

	img := readPNG(t, out)
	assert.Equal(t, image.Rect(0, 0, 1080, 1920), img.Bounds())
	// background covers the whole frame
	assert.Equal(t, uint32(0xffff), alphaAt(img, 5, 1915))
}

func TestRenderThumbnailBadImage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scene.png")
	require.NoError(t, os.WriteFile(in, []byte("not an image"), 0644))

	r := newTestRenderer(t, goFontPath(t))
	assert.Error(t, r.RenderThumbnail(in, "title", filepath.Join(dir, "thumb.png")))
}

func TestCoverRect(t *testing.T) {
	assert.Equal(t, image.Rect(532, 0, 1068, 954), coverRect(image.Rect(0, 0, 1600, 954), 1080, 1920))
	assert.Equal(t, image.Rect(0, 0, 1080, 1920), coverRect(image.Rect(0, 0, 1080, 1920), 1080, 1920))
}

func TestParseHexColor(t *testing.T) {
	def := color.NRGBA{A: 1}
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0xff, A: 0xff}, parseHexColor("#FFFF00", def))
	assert.Equal(t, color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x40}, parseHexColor("10203040", def))
	assert.Equal(t, def, parseHexColor("yellow", def))
}
