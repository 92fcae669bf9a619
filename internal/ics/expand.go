package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"gamecal/internal/model"
)

const defaultMaxOccurrences = 5000

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Location is the zone events are reported in; nil means time.Local.
	Location *time.Location

	From time.Time
	To   time.Time

	// MaxOccurrences caps the instances produced per UID.
	MaxOccurrences int
}

// ExpandResult holds the occurrences in range, ordered by start.
type ExpandResult struct {
	Events []model.CalendarEvent
	// Truncated lists UIDs that hit MaxOccurrences.
	Truncated []string
	// BadRules lists UIDs whose RRULE could not be parsed.
	BadRules []string
}

// Expand turns parsed VEVENTs into concrete calendar events between From
// and To. RRULE series are expanded with EXDATE removed and RECURRENCE-ID
// overrides applied.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var res ExpandResult

	if cfg.To.Before(cfg.From) {
		return res, errors.New("expand: range end is before range start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}

	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	var order []string

	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	for _, uid := range order {
		for _, ev := range bases[uid] {
			if ev.RawRRule == "" {
				res.Events = append(res.Events, single(ev, overrides[uid], cfg)...)
				continue
			}

			occ, capped, err := series(ev, overrides[uid], cfg)
			if err != nil {
				res.BadRules = append(res.BadRules, uid)
				continue
			}
			if capped {
				res.Truncated = append(res.Truncated, uid)
			}
			res.Events = append(res.Events, occ...)
		}
	}

	sort.SliceStable(res.Events, func(i, j int) bool {
		return res.Events[i].Start.Before(res.Events[j].Start)
	})
	return res, nil
}

func single(ev ParsedEvent, ovs []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	if !overlaps(ev.Start, endOrStart(ev), cfg.From, cfg.To) {
		return nil
	}
	if o, ok := overrideFor(ovs, ev.Start); ok {
		ev = o
	}
	return []model.CalendarEvent{toEvent(ev, ev.Start, ev.End, false, cfg.Location)}
}

func series(ev ParsedEvent, ovs []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool, error) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(cfg.From.In(loc), cfg.To.In(loc), true)

	capped := false
	if len(starts) > cfg.MaxOccurrences {
		starts = starts[:cfg.MaxOccurrences]
		capped = true
	}

	dur := time.Duration(0)
	if !ev.End.IsZero() {
		dur = ev.End.Sub(ev.Start)
	}

	out := make([]model.CalendarEvent, 0, len(starts))
	for _, s := range starts {
		var e time.Time
		switch {
		case ev.AllDay:
			s = midnight(s)
			e = s.AddDate(0, 0, 1)
		case dur > 0:
			e = s.Add(dur)
		}

		inst := ev
		if o, ok := overrideFor(ovs, s); ok {
			inst, s, e = o, o.Start, o.End
		}
		out = append(out, toEvent(inst, s, e, true, cfg.Location))
	}
	return out, capped, nil
}

// overrideFor finds the override whose RECURRENCE-ID is start.
func overrideFor(ovs []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range ovs {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func toEvent(ev ParsedEvent, start, end time.Time, recurring bool, loc *time.Location) model.CalendarEvent {
	id := ev.UID
	if recurring {
		id = ev.UID + "/" + start.UTC().Format("20060102T150405Z")
	}

	out := model.CalendarEvent{
		ID:          id,
		Title:       ev.Summary,
		Start:       start.In(loc),
		AllDay:      ev.AllDay,
		URL:         ev.URL,
		Location:    ev.Location,
		Description: ev.Description,
		Extended: map[string]string{
			"source": ev.Source.ID,
			"uid":    ev.UID,
		},
	}
	if !end.IsZero() {
		out.End = end.In(loc)
	}
	return out
}

func endOrStart(ev ParsedEvent) time.Time {
	if ev.End.IsZero() {
		return ev.Start
	}
	return ev.End
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
