package widget

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gglcd/internal/convert"
	"gglcd/internal/framebuffer"
	"gglcd/internal/ics"
	"gglcd/internal/panel"
)

func newFB(t *testing.T, v panel.Variant) *framebuffer.Framebuffer {
	t.Helper()
	fb, err := framebuffer.ForVariant(v)
	require.NoError(t, err)
	return fb
}

func litColumns(fb *framebuffer.Framebuffer) (minX, maxX int) {
	size := fb.Size()
	minX, maxX = size.Width, -1
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			if fb.Pixel(x, y) {
				minX = min(minX, x)
				maxX = max(maxX, x)
			}
		}
	}
	return minX, maxX
}

func countLit(fb *framebuffer.Framebuffer) int {
	n := 0
	for _, b := range fb.Bytes() {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func TestTextDrawsAtOrigin(t *testing.T) {
	fb := newFB(t, panel.Keyboard)
	Text(fb, []string{"HI"}, TextOptions{})

	minX, maxX := litColumns(fb)
	assert.GreaterOrEqual(t, minX, 0)
	assert.Less(t, maxX, 14, "two 7px glyphs")
	assert.Positive(t, countLit(fb))
}

func TestTextClearsUnlessKeep(t *testing.T) {
	fb := newFB(t, panel.Keyboard)
	fb.SetPixel(127, 39, true)

	Text(fb, []string{"A"}, TextOptions{Keep: true})
	assert.True(t, fb.Pixel(127, 39))

	Text(fb, []string{"A"}, TextOptions{})
	assert.False(t, fb.Pixel(127, 39))
}

func TestTextCentered(t *testing.T) {
	fb := newFB(t, panel.Keyboard)
	Text(fb, []string{"00:00"}, TextOptions{Center: true})

	minX, maxX := litColumns(fb)
	left := minX
	right := fb.Size().Width - 1 - maxX
	assert.InDelta(t, left, right, 8)
}

func TestTextClipsSilently(t *testing.T) {
	fb := newFB(t, panel.Mouse)
	long := strings.Repeat("W", 40)
	assert.NotPanics(t, func() {
		Text(fb, []string{long, long, long, long}, TextOptions{X: -3, Y: -5})
	})
	assert.Len(t, fb.Bytes(), panel.Mouse.Dimensions().ByteLen())
}

func TestClock(t *testing.T) {
	fb := newFB(t, panel.WiredHeadset)
	Clock(fb, time.Date(2026, 10, 18, 13, 37, 0, 0, time.UTC), "")
	assert.Positive(t, countLit(fb))

	two := newFB(t, panel.WiredHeadset)
	Clock(two, time.Date(2026, 10, 18, 13, 37, 0, 0, time.UTC), "15:04\nMon 02 Jan")
	assert.Greater(t, countLit(two), countLit(fb))
}

func TestLines(t *testing.T) {
	assert.Nil(t, Lines(""))
	assert.Equal(t, []string{"a", "b"}, Lines("a\nb\n"))
}

func TestSVGFillsPanel(t *testing.T) {
	fb := newFB(t, panel.Keyboard)
	doc := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 128 40" width="128" height="40">
  <rect x="0" y="0" width="64" height="40" fill="#ffffff"/>
</svg>`
	require.NoError(t, SVG(fb, strings.NewReader(doc), convert.Options{}))

	assert.True(t, fb.Pixel(10, 20))
	assert.False(t, fb.Pixel(100, 20), "transparent half stays off")
}

func TestSVGInvert(t *testing.T) {
	fb := newFB(t, panel.Keyboard)
	doc := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 128 40" width="128" height="40">
  <rect x="0" y="0" width="64" height="40" fill="#000000"/>
</svg>`
	require.NoError(t, SVG(fb, strings.NewReader(doc), convert.Options{Invert: true}))
	assert.True(t, fb.Pixel(10, 20))
	assert.False(t, fb.Pixel(100, 20))
}

func TestSVGRejectsGarbage(t *testing.T) {
	fb := newFB(t, panel.Keyboard)
	assert.Error(t, SVG(fb, strings.NewReader("<svg"), convert.Options{}))
}

func TestAgendaLines(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		occ  ics.Occurrence
		want string
	}{
		{ics.Occurrence{Summary: "Standup", Start: now.Add(-10 * time.Minute), End: now.Add(5 * time.Minute)}, "now Standup"},
		{ics.Occurrence{Summary: "Lunch", Start: now.Add(3 * time.Hour), End: now.Add(4 * time.Hour)}, "12:30 Lunch"},
		{ics.Occurrence{Summary: "Trip", Start: now.Add(48 * time.Hour), End: now.Add(50 * time.Hour)}, "Tue Trip"},
		{ics.Occurrence{Summary: "Holiday", AllDay: true, Start: now.Add(time.Hour), End: now.Add(5 * time.Hour)}, "today Holiday"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, agendaLine(c.occ, now))
	}
}

func TestAgendaDraws(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	empty := newFB(t, panel.Mouse)
	Agenda(empty, nil, now)
	assert.Positive(t, countLit(empty))

	fb := newFB(t, panel.Mouse)
	occ := make([]ics.Occurrence, 10)
	for i := range occ {
		occ[i] = ics.Occurrence{Summary: "Event", Start: now.Add(time.Duration(i+1) * time.Hour)}
	}
	Agenda(fb, occ, now)
	assert.Positive(t, countLit(fb))
}
