package overlay

import (
	"image"

	"github.com/go-text/typesetting/di"
	tsfont "github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// fallbackSize is the pixel height of basicfont.Face7x13.
const fallbackSize = 13

// lineFace measures and rasterises single lines of text.
type lineFace interface {
	// extents returns the ascent and descent below the baseline, in pixels.
	extents() (ascent, descent int)
	advance(line string) int
	// drawMask paints line into mask with the pen starting at dot on the baseline.
	drawMask(mask *image.Alpha, line string, dot fixed.Point26_6)
}

// bitmapFace draws with the built-in ASCII face when no font is loaded.
type bitmapFace struct{}

func (bitmapFace) extents() (int, int) {
	m := basicfont.Face7x13.Metrics()
	return m.Ascent.Ceil(), m.Descent.Ceil()
}

func (bitmapFace) advance(line string) int {
	return font.MeasureString(basicfont.Face7x13, line).Ceil()
}

func (bitmapFace) drawMask(mask *image.Alpha, line string, dot fixed.Point26_6) {
	d := &font.Drawer{Dst: mask, Src: image.Opaque, Face: basicfont.Face7x13, Dot: dot}
	d.DrawString(line)
}

// shapedFace runs each line through a HarfBuzz shaper, so scripts that
// reorder or combine glyphs (Devanagari matras, conjuncts, reph) come out in
// visual order, then fills the glyph outlines. A shapedFace belongs to one
// goroutine; the underlying Font is shared.
type shapedFace struct {
	face   *tsfont.Face
	size   fixed.Int26_6
	shaper shaping.HarfbuzzShaper
}

func newShapedFace(f *tsfont.Font, size int) *shapedFace {
	s := &shapedFace{face: tsfont.NewFace(f), size: fixed.I(size)}
	s.shaper.SetFontCacheSize(1)
	return s
}

// shape returns the glyphs of line in visual order, left to right.
func (s *shapedFace) shape(line string) shaping.Output {
	text := []rune(line)
	script := scriptOf(text)
	dir := di.DirectionLTR
	if script == language.Arabic || script == language.Hebrew {
		dir = di.DirectionRTL
	}
	return s.shaper.Shape(shaping.Input{
		Text:      text,
		RunStart:  0,
		RunEnd:    len(text),
		Direction: dir,
		Face:      s.face,
		Size:      s.size,
		Script:    script,
	})
}

func (s *shapedFace) extents() (int, int) {
	b := s.shape(" ").LineBounds
	return b.Ascent.Ceil(), (-b.Descent).Ceil()
}

func (s *shapedFace) advance(line string) int {
	return s.shape(line).Advance.Ceil()
}

func (s *shapedFace) drawMask(mask *image.Alpha, line string, dot fixed.Point26_6) {
	out := s.shape(line)
	bounds := mask.Bounds()
	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())

	// glyph outlines are in font units with y growing up
	scale := float32(out.Size) / 64 / float32(s.face.Upem())
	pen := dot.X
	drawn := false
	for _, g := range out.Glyphs {
		ox := fixedToFloat(pen + g.XOffset)
		oy := fixedToFloat(dot.Y - g.YOffset)
		pen += g.XAdvance

		outline, ok := s.face.GlyphData(g.GlyphID).(tsfont.GlyphOutline)
		if !ok {
			continue
		}
		pt := func(p ot.SegmentPoint) (float32, float32) {
			return ox + p.X*scale, oy - p.Y*scale
		}
		open := false
		for _, seg := range outline.Segments {
			switch seg.Op {
			case ot.SegmentOpMoveTo:
				if open {
					z.ClosePath()
				}
				z.MoveTo(pt(seg.Args[0]))
				open = true
			case ot.SegmentOpLineTo:
				z.LineTo(pt(seg.Args[0]))
			case ot.SegmentOpQuadTo:
				bx, by := pt(seg.Args[0])
				cx, cy := pt(seg.Args[1])
				z.QuadTo(bx, by, cx, cy)
			case ot.SegmentOpCubeTo:
				bx, by := pt(seg.Args[0])
				cx, cy := pt(seg.Args[1])
				dx, dy := pt(seg.Args[2])
				z.CubeTo(bx, by, cx, cy, dx, dy)
			}
		}
		if open {
			z.ClosePath()
			drawn = true
		}
	}
	if drawn {
		z.Draw(mask, bounds, image.Opaque, image.Point{})
	}
}

// scriptOf returns the script of the first rune that has a strong one,
// Latin when the line is only digits, spaces and punctuation.
func scriptOf(text []rune) language.Script {
	for _, r := range text {
		if sc := language.LookupScript(r); sc.Strong() && sc != language.Unknown {
			return sc
		}
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}

// glyphCovered reports whether the font maps r to a real glyph.
func glyphCovered(f *tsfont.Font, r rune) bool {
	gid, ok := f.NominalGlyph(r)
	return ok && gid != 0
}
