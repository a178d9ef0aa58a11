package framebuffer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// The framebuffer doubles as a draw.Image and a periph display.Drawer so any
// image/draw, x/image/font or periph based renderer can target a panel
// without the panel code knowing about them.
var (
	_ draw.Image     = (*Framebuffer)(nil)
	_ display.Drawer = (*Framebuffer)(nil)
)

// ColorModel converts arbitrary colours to on/off bits.
func (fb *Framebuffer) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds is the panel rectangle anchored at the origin.
func (fb *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, fb.dims.Width, fb.dims.Height)
}

// At returns image1bit.On or image1bit.Off.
func (fb *Framebuffer) At(x, y int) color.Color {
	return image1bit.Bit(fb.Pixel(x, y))
}

// Set converts c through the bit model and writes it.
func (fb *Framebuffer) Set(x, y int, c color.Color) {
	b, _ := image1bit.BitModel.Convert(c).(image1bit.Bit)
	fb.SetPixel(x, y, bool(b))
}

// Draw copies src into the panel, clipped to the panel bounds.
func (fb *Framebuffer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	clipped := r.Intersect(fb.Bounds())
	if clipped.Empty() {
		return nil
	}
	sp = sp.Add(clipped.Min.Sub(r.Min))
	draw.Draw(fb, clipped, src, sp, draw.Src)
	return nil
}

// Halt blanks the panel contents. Nothing is sent until the next flush.
func (fb *Framebuffer) Halt() error {
	fb.Clear(false)
	return nil
}

func (fb *Framebuffer) String() string {
	return fmt.Sprintf("framebuffer(%s)", fb.dims)
}

// Gray renders the bitmap as a grayscale image, each panel pixel becoming a
// scale x scale block. On pixels are white.
func (fb *Framebuffer) Gray(scale int) *image.Gray {
	if scale < 1 {
		scale = 1
	}
	img := image.NewGray(image.Rect(0, 0, fb.dims.Width*scale, fb.dims.Height*scale))
	for y := 0; y < fb.dims.Height; y++ {
		for x := 0; x < fb.dims.Width; x++ {
			if !fb.Pixel(x, y) {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				row := img.Pix[(y*scale+dy)*img.Stride:]
				for dx := 0; dx < scale; dx++ {
					row[x*scale+dx] = 0xFF
				}
			}
		}
	}
	return img
}
