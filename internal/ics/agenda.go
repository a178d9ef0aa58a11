package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "gglcd/internal/log"
)

// maxPerEvent caps how many instances one recurring event may contribute.
const maxPerEvent = 500

// Occurrence is one concrete instance of an event.
type Occurrence struct {
	UID      string
	Summary  string
	Location string
	AllDay   bool
	Start    time.Time
	End      time.Time
}

// Upcoming expands events into the occurrences that have not ended by from
// and start before from+horizon, sorted by start. limit <= 0 means no limit.
// Times are returned in loc (time.Local when nil).
func Upcoming(events []Event, from time.Time, horizon time.Duration, limit int, loc *time.Location) ([]Occurrence, error) {
	if horizon <= 0 {
		return nil, errors.New("ics: horizon must be positive")
	}
	if loc == nil {
		loc = time.Local
	}
	to := from.Add(horizon)

	overrides := make(map[string][]Event)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		}
	}

	var out []Occurrence
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			continue
		}
		for _, occ := range expand(ev, overrides[ev.UID], from, to) {
			occ.Start = occ.Start.In(loc)
			occ.End = occ.End.In(loc)
			out = append(out, occ)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func expand(ev Event, overrides []Event, from, to time.Time) []Occurrence {
	dur := ev.End.Sub(ev.Start)

	var starts []time.Time
	if ev.RRule == "" {
		starts = []time.Time{ev.Start}
	} else {
		r, err := rrule.StrToRRule(ev.RRule)
		if err != nil {
			appLog.Error("bad RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
			return nil
		}
		r.DTStart(ev.Start)

		var set rrule.Set
		set.RRule(r)
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(ev.Start.Location()))
		}
		// Widen the window by the duration so events already running at
		// from are included.
		starts = set.Between(from.Add(-dur).In(ev.Start.Location()), to.In(ev.Start.Location()), true)
		if len(starts) > maxPerEvent {
			starts = starts[:maxPerEvent]
		}
	}

	var out []Occurrence
	for _, start := range starts {
		occ := Occurrence{
			UID:      ev.UID,
			Summary:  ev.Summary,
			Location: ev.Location,
			AllDay:   ev.AllDay,
			Start:    start,
			End:      start.Add(dur),
		}
		if o, ok := findOverride(overrides, start); ok {
			occ.Summary = o.Summary
			occ.Location = o.Location
			occ.Start = o.Start
			occ.End = o.End
		}
		if occ.End.After(from) && occ.Start.Before(to) || occ.Start.Equal(from) {
			out = append(out, occ)
		}
	}
	return out
}

func findOverride(overrides []Event, start time.Time) (Event, bool) {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return Event{}, false
}
