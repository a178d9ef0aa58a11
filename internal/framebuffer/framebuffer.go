// Package framebuffer implements the packed monochrome bitmap that mirrors one
// panel's pixel grid.
//
// Pixels are stored row-major, MSB-first: pixel (x, y) is bit index
// y*width + x, living in byte index/8 under mask 0x80 >> (index%8). This is
// the exact layout the GameSense service expects in an image-data payload.
package framebuffer

import (
	"fmt"

	appLog "gglcd/internal/log"
	"gglcd/internal/panel"
)

// Pixel is a single on/off write at a coordinate.
type Pixel struct {
	X, Y int
	On   bool
}

// DrawTarget is what rendering code needs from a panel: its size, a fast fill
// and a stream of pixel writes. Writes outside the panel are ignored.
type DrawTarget interface {
	Size() panel.Dimensions
	Clear(on bool)
	DrawBatch(pixels []Pixel)
}

// Framebuffer is a fixed-size 1bpp bitmap. It is not safe for concurrent
// mutation; a single writer owns it.
type Framebuffer struct {
	dims panel.Dimensions
	buf  []byte
}

var _ DrawTarget = (*Framebuffer)(nil)

// New allocates a zeroed (all off) framebuffer.
func New(dims panel.Dimensions) (*Framebuffer, error) {
	if !dims.Aligned() {
		return nil, fmt.Errorf("framebuffer: dimensions %s are not byte aligned", dims)
	}
	return &Framebuffer{
		dims: dims,
		buf:  make([]byte, dims.ByteLen()),
	}, nil
}

// ForVariant allocates a framebuffer sized for a panel variant.
func ForVariant(v panel.Variant) (*Framebuffer, error) {
	return New(v.Dimensions())
}

// FromBytes builds a framebuffer holding a copy of an already packed bitmap.
func FromBytes(dims panel.Dimensions, data []byte) (*Framebuffer, error) {
	fb, err := New(dims)
	if err != nil {
		return nil, err
	}
	if len(data) != len(fb.buf) {
		return nil, fmt.Errorf("framebuffer: expected %d bytes for %s, got %d", len(fb.buf), dims, len(data))
	}
	copy(fb.buf, data)
	return fb, nil
}

// Size returns the panel dimensions this buffer was built for.
func (fb *Framebuffer) Size() panel.Dimensions {
	return fb.dims
}

// Clear sets every pixel on or off.
func (fb *Framebuffer) Clear(on bool) {
	var fill byte
	if on {
		fill = 0xFF
	}
	for i := range fb.buf {
		fb.buf[i] = fill
	}
}

// SetPixel writes a single pixel. Coordinates outside the panel are ignored
// with a warning; rendering code routinely draws partly off-canvas.
func (fb *Framebuffer) SetPixel(x, y int, on bool) {
	if !fb.inBounds(x, y) {
		appLog.Warn("ignoring out-of-bounds draw", "x", x, "y", y, "size", fb.dims.String())
		return
	}
	i := y*fb.dims.Width + x
	mask := byte(0x80 >> (i & 7))
	if on {
		fb.buf[i>>3] |= mask
	} else {
		fb.buf[i>>3] &^= mask
	}
}

// Pixel reads a single pixel. Out-of-bounds reads are off.
func (fb *Framebuffer) Pixel(x, y int) bool {
	if !fb.inBounds(x, y) {
		return false
	}
	i := y*fb.dims.Width + x
	return fb.buf[i>>3]&(0x80>>(i&7)) != 0
}

// DrawBatch applies writes in order, so a later write to the same coordinate
// wins.
func (fb *Framebuffer) DrawBatch(pixels []Pixel) {
	for _, p := range pixels {
		fb.SetPixel(p.X, p.Y, p.On)
	}
}

// Bytes exposes the packed bitmap without copying. Callers must treat it as
// read-only.
func (fb *Framebuffer) Bytes() []byte {
	return fb.buf
}

// Snapshot returns a copy of the packed bitmap.
func (fb *Framebuffer) Snapshot() []byte {
	out := make([]byte, len(fb.buf))
	copy(out, fb.buf)
	return out
}

func (fb *Framebuffer) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < fb.dims.Width && y < fb.dims.Height
}
