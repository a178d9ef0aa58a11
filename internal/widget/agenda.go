package widget

import (
	"time"

	"gglcd/internal/framebuffer"
	"gglcd/internal/ics"
)

// Agenda draws one upcoming occurrence per line, as many as fit. Lines are
// "HH:MM Summary" for today, "Mon Summary" for later days and "now Summary"
// for events in progress.
func Agenda(fb *framebuffer.Framebuffer, occ []ics.Occurrence, now time.Time) {
	lineH := Face.Metrics().Height.Ceil()
	fit := fb.Size().Height / lineH
	if fit < 1 {
		fit = 1
	}

	if len(occ) == 0 {
		Text(fb, []string{"No events"}, TextOptions{Center: true})
		return
	}

	lines := make([]string, 0, fit)
	for _, o := range occ {
		if len(lines) == fit {
			break
		}
		lines = append(lines, agendaLine(o, now))
	}
	Text(fb, lines, TextOptions{X: 1})
}

func agendaLine(o ics.Occurrence, now time.Time) string {
	start := o.Start.In(now.Location())
	var when string
	switch {
	case !start.After(now) && o.End.After(now):
		when = "now"
	case o.AllDay && sameDay(start, now):
		when = "today"
	case sameDay(start, now):
		when = start.Format("15:04")
	default:
		when = start.Format("Mon")
	}
	return when + " " + o.Summary
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
