// Package ics turns an iCalendar feed into the short list of upcoming
// events the agenda widget draws.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "gglcd/internal/log"
)

// Event is one VEVENT before recurrence expansion.
type Event struct {
	UID      string
	Summary  string
	Location string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on a VEVENT that overrides one instance of a
	// recurring event with the same UID.
	RecurrenceID *time.Time
}

// Parse decodes an ICS payload. VEVENTs that cannot be understood are
// logged and skipped; only an unreadable calendar is an error.
func Parse(body []byte) ([]Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}

	var events []Event
	for _, ve := range cal.Events() {
		ev, err := parseEvent(ve)
		if err != nil {
			appLog.Warn("skipping vevent", "err", err.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parsed", "events", len(events))
	return events, nil
}

func parseEvent(ve *ical.VEvent) (Event, error) {
	var ev Event

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.Location = p.Value
	}

	dtstart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtstart == nil {
		return ev, fmt.Errorf("%s: missing DTSTART", ev.UID)
	}
	ev.AllDay = isDateValue(dtstart)

	if ev.AllDay {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return ev, fmt.Errorf("%s: DTSTART: %w", ev.UID, err)
		}
		ev.Start = start
		end, err := ve.GetAllDayEndAt()
		if err != nil || !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
		ev.End = end
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return ev, fmt.Errorf("%s: DTSTART: %w", ev.UID, err)
		}
		ev.Start = start
		end, err := ve.GetEndAt()
		if err != nil || end.Before(start) {
			end = start
		}
		ev.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseTime(part, ev.Start.Location()); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, err := parseTime(p.Value, ev.Start.Location()); err == nil {
			ev.RecurrenceID = &t
		}
	}

	return ev, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseTime handles the three value shapes EXDATE and RECURRENCE-ID use.
// Floating and date values are read in loc.
func parseTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
