package overlay

import (
	"image"

	"go.uber.org/zap"
)

// CaptionReport describes how a caption was laid out.
type CaptionReport struct {
	Lines         int
	FontSize      int
	Y             int
	Shrunk        bool // font size was reduced to fit
	Pinned        bool // block did not fit and was pinned to the top margin
	MissingGlyphs int
}

// RenderCaption writes a transparent frame-sized PNG to outPath with text
// wrapped, centred and anchored above the bottom offset: the first line
// starts at height - bottomOffset - lines*lineHeight. Text is never dropped.
func (r *Renderer) RenderCaption(text, outPath string) (CaptionReport, error) {
	o := r.opts
	st := o.Caption
	canvas := image.NewRGBA(image.Rect(0, 0, o.Width, o.Height))

	available := o.Height - o.BottomOffset - o.TopMargin
	block := r.fit(text, st, available)

	rep := CaptionReport{
		Lines:         len(block.lines),
		FontSize:      block.size,
		Shrunk:        block.size < st.FontSize,
		MissingGlyphs: r.missingGlyphs(text),
	}

	y := o.Height - o.BottomOffset - block.height()
	if y < o.TopMargin {
		y = o.TopMargin
		rep.Pinned = true
	}
	rep.Y = y

	switch {
	case rep.Pinned:
		r.log.Warn("caption too long for frame, pinned to top margin",
			zap.Int("runes", len([]rune(text))),
			zap.Int("lines", rep.Lines),
			zap.Int("font_size", rep.FontSize),
		)
	case rep.Shrunk:
		r.log.Info("caption font reduced to fit",
			zap.Int("lines", rep.Lines),
			zap.Int("font_size", rep.FontSize),
		)
	}
	if rep.MissingGlyphs > 0 {
		r.log.Warn("caption font lacks glyphs", zap.Int("missing", rep.MissingGlyphs), zap.String("text", text))
	}

	block.draw(canvas, y, st)
	if err := writePNG(outPath, canvas); err != nil {
		return rep, err
	}
	return rep, nil
}
