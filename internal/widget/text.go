// Package widget renders simple content (text, a clock, SVG icons and an
// agenda) into panel framebuffers.
package widget

import (
	"image"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"gglcd/internal/framebuffer"
)

// Face is the bitmap font every widget draws with. 7x13 fits three lines on
// the smallest panel.
var Face font.Face = basicfont.Face7x13

// TextOptions positions text on a panel.
type TextOptions struct {
	// X, Y are the top-left of the first line when not centred.
	X, Y int
	// LineGap is extra spacing between lines in pixels.
	LineGap int
	// Center centres the block horizontally and vertically.
	Center bool
	// Keep leaves the existing contents instead of clearing the panel first.
	Keep bool
}

// Text draws lines onto fb. Text running off the panel is clipped.
func Text(fb *framebuffer.Framebuffer, lines []string, opts TextOptions) {
	if !opts.Keep {
		fb.Clear(false)
	}
	if len(lines) == 0 {
		return
	}

	m := Face.Metrics()
	ascent := m.Ascent.Ceil()
	lineH := m.Height.Ceil() + opts.LineGap
	size := fb.Size()

	top := opts.Y
	if opts.Center {
		block := lineH*len(lines) - opts.LineGap
		top = (size.Height - block) / 2
	}

	d := &font.Drawer{
		Dst:  fb,
		Src:  image.White,
		Face: Face,
	}
	for i, line := range lines {
		x := opts.X
		if opts.Center {
			x = (size.Width - d.MeasureString(line).Ceil()) / 2
		}
		d.Dot = fixed.P(x, top+i*lineH+ascent)
		d.DrawString(line)
	}
}

// Lines splits s on newlines, dropping a trailing empty line.
func Lines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// DefaultClockLayout is used when Clock gets an empty layout.
const DefaultClockLayout = "15:04"

// Clock draws now centred on the panel. A layout with a newline draws two
// lines, e.g. "15:04\nMon 02 Jan".
func Clock(fb *framebuffer.Framebuffer, now time.Time, layout string) {
	if layout == "" {
		layout = DefaultClockLayout
	}
	Text(fb, Lines(now.Format(layout)), TextOptions{Center: true, LineGap: 2})
}
