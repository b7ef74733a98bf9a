package overlay

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// RenderThumbnail scales the still at imagePath to cover the frame and
// draws title over its upper third.
func (r *Renderer) RenderThumbnail(imagePath, title, outPath string) error {
	src, err := decodeImage(imagePath)
	if err != nil {
		return err
	}

	o := r.opts
	canvas := image.NewRGBA(image.Rect(0, 0, o.Width, o.Height))
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), src, coverRect(src.Bounds(), o.Width, o.Height), draw.Src, nil)

	st := o.Thumbnail
	block := r.fit(title, st, o.Height-2*o.TopMargin)
	if !block.fits {
		r.log.Warn("thumbnail title does not fit", zap.String("title", title))
	}

	y := o.Height/3 - block.height()/2
	y = max(o.TopMargin, min(y, o.Height-o.TopMargin-block.height()))
	block.draw(canvas, y, st)

	return writePNG(outPath, canvas)
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// coverRect returns the centred region of b with the aspect ratio w:h.
func coverRect(b image.Rectangle, w, h int) image.Rectangle {
	bw, bh := b.Dx(), b.Dy()
	if bw*h > bh*w {
		cw := bh * w / h
		x := b.Min.X + (bw-cw)/2
		return image.Rect(x, b.Min.Y, x+cw, b.Max.Y)
	}
	ch := bw * h / w
	y := b.Min.Y + (bh-ch)/2
	return image.Rect(b.Min.X, y, b.Max.X, y+ch)
}
