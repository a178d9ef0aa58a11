package widget

import (
	"fmt"
	"image"
	"io"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"gglcd/internal/convert"
	"gglcd/internal/framebuffer"
)

// SVG rasterizes an SVG document scaled to the whole panel and thresholds it
// into fb. Transparent areas stay off; opts decides which painted areas
// light up.
func SVG(fb *framebuffer.Framebuffer, r io.Reader, opts convert.Options) error {
	icon, err := oksvg.ReadIconStream(r, oksvg.WarnErrorMode)
	if err != nil {
		return fmt.Errorf("widget: read svg: %w", err)
	}

	size := fb.Size()
	w, h := size.Width, size.Height
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)

	convert.Threshold(img, fb, opts)
	return nil
}
