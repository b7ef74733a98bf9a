package overlay

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"
)

// Wrap breaks text into lines of at most width runes, splitting on
// whitespace. Words longer than width are broken across lines.
func Wrap(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	var lines []string
	var line []rune
	flush := func() {
		if len(line) > 0 {
			lines = append(lines, string(line))
			line = line[:0]
		}
	}
	for _, w := range strings.Fields(text) {
		word := []rune(w)
		for len(word) > width {
			flush()
			lines = append(lines, string(word[:width]))
			word = word[width:]
		}
		if len(line) > 0 && len(line)+1+len(word) > width {
			flush()
		}
		if len(line) > 0 {
			line = append(line, ' ')
		}
		line = append(line, word...)
	}
	flush()
	return lines
}

// textBlock is wrapped text laid out at one font size.
type textBlock struct {
	lines  []string
	face   lineFace
	scale  float64 // canvas pixels per face pixel
	lineH  int     // canvas pixels
	radius int     // outline radius in face pixels
	size   int
	fits   bool
}

func (b *textBlock) height() int { return len(b.lines) * b.lineH }

// lineWidth is the canvas width of a rendered line including its outline.
func (b *textBlock) lineWidth(line string) int {
	adv := b.face.advance(line) + 2*b.radius
	return int(float64(adv) * b.scale)
}

// fit lays text out in st, shrinking the font from st.FontSize toward
// st.MinFontSize until the block is no taller than maxHeight and no line is
// wider than the frame. When even the minimum size does not fit, the block
// at the minimum size is returned with fits=false.
func (r *Renderer) fit(text string, st Style, maxHeight int) *textBlock {
	text = norm.NFC.String(text)
	minSize := st.MinFontSize
	if minSize <= 0 || minSize > st.FontSize {
		minSize = st.FontSize
	}

	for size := st.FontSize; ; size -= 2 {
		if size < minSize {
			size = minSize
		}
		b := r.layout(text, st, size)
		widest := 0
		for _, l := range b.lines {
			widest = max(widest, b.lineWidth(l))
		}
		b.fits = b.height() <= maxHeight && widest <= r.opts.Width
		if b.fits || size == minSize {
			return b
		}
	}
}

func (r *Renderer) layout(text string, st Style, size int) *textBlock {
	b := &textBlock{
		size:  size,
		lineH: max(1, st.LineHeight*size/st.FontSize),
		lines: Wrap(text, max(1, st.WrapWidth*st.FontSize/size)),
	}
	radius := st.StrokeWidth * size / st.FontSize
	if st.StrokeWidth > 0 {
		radius = max(1, radius)
	}

	if r.font == nil {
		b.face = bitmapFace{}
		b.scale = float64(size) / fallbackSize
		b.radius = int(float64(radius)/b.scale + 0.5)
		if radius > 0 {
			b.radius = max(1, b.radius)
		}
		return b
	}

	b.face = newShapedFace(r.font, size)
	b.scale = 1
	b.radius = radius
	return b
}

// draw paints every line centred horizontally, the first line's ascender
// top at y0, each following line lineH further down.
func (b *textBlock) draw(dst *image.RGBA, y0 int, st Style) {
	for i, line := range b.lines {
		y := y0 + i*b.lineH - int(float64(b.radius)*b.scale)
		if y >= dst.Bounds().Max.Y {
			break
		}
		img := renderLine(b.face, line, b.radius, st.Fill, st.Stroke)
		w := int(float64(img.Bounds().Dx()) * b.scale)
		h := int(float64(img.Bounds().Dy()) * b.scale)
		x := (dst.Bounds().Dx() - w) / 2
		target := image.Rect(x, y, x+w, y+h)
		if b.scale == 1 {
			draw.Draw(dst, target, img, image.Point{}, draw.Over)
		} else {
			draw.NearestNeighbor.Scale(dst, target, img, img.Bounds(), draw.Over, nil)
		}
	}
}

// renderLine rasterises one line with an outline of the given radius. The
// glyph mask is drawn once and stamped at every offset inside the radius in
// the stroke color, then once more in the fill color.
func renderLine(face lineFace, line string, radius int, fill, stroke color.Color) *image.RGBA {
	ascent, descent := face.extents()
	adv := face.advance(line)
	bounds := image.Rect(0, 0, adv+2*radius, ascent+descent+2*radius)

	mask := image.NewAlpha(bounds)
	face.drawMask(mask, line, fixed.P(radius, radius+ascent))

	img := image.NewRGBA(bounds)
	strokeSrc := image.NewUniform(stroke)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			draw.DrawMask(img, bounds.Add(image.Pt(dx, dy)), strokeSrc, image.Point{}, mask, image.Point{}, draw.Over)
		}
	}
	draw.DrawMask(img, bounds, image.NewUniform(fill), image.Point{}, mask, image.Point{}, draw.Over)
	return img
}
