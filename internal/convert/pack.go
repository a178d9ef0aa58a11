package convert

import (
	"image"
	"image/color"

	"gglcd/internal/framebuffer"
)

// DefaultLevel is the luma at or above which a pixel is lit.
const DefaultLevel = 128

// Options tunes how an image is thresholded onto a panel.
type Options struct {
	// Level is the luma threshold (0-255). Zero means DefaultLevel.
	Level int
	// Invert lights dark pixels instead of bright ones, which suits
	// black-on-white sources such as web pages and SVG icons.
	Invert bool
}

// Threshold renders img into dst as 1bpp.
//
//   - Images larger than the panel are centre-cropped on each axis.
//   - Smaller images are placed at the top-left; the rest of the panel is
//     left off.
//   - Pixels with alpha < 128 are off regardless of Invert.
//   - Luma Y = 0.299R + 0.587G + 0.114B decides on/off against Level.
//
// The previous panel contents are discarded.
func Threshold(img image.Image, dst framebuffer.DrawTarget, opts Options) {
	level := opts.Level
	if level <= 0 {
		level = DefaultLevel
	}

	dst.Clear(false)

	b := img.Bounds()
	size := dst.Size()
	w := min(b.Dx(), size.Width)
	h := min(b.Dy(), size.Height)

	// 가로/세로 모두 패널보다 크면 가운데를 잘라 쓴다.
	startX := b.Min.X + max(0, (b.Dx()-size.Width)/2)
	startY := b.Min.Y + max(0, (b.Dy()-size.Height)/2)

	row := make([]framebuffer.Pixel, 0, w)
	for py := 0; py < h; py++ {
		row = row[:0]
		for px := 0; px < w; px++ {
			c := color.NRGBAModel.Convert(img.At(startX+px, startY+py)).(color.NRGBA)
			if c.A < 128 {
				continue
			}
			if lit(c, level) != opts.Invert {
				row = append(row, framebuffer.Pixel{X: px, Y: py, On: true})
			}
		}
		dst.DrawBatch(row)
	}
}

// lit reports whether a colour is bright enough to light a pixel.
func lit(c color.NRGBA, level int) bool {
	y := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	return y >= float64(level)
}
