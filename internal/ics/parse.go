package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// ParsedEvent is one VEVENT before recurrence expansion.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	URL         string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time

	// Recurrence is the RECURRENCE-ID of an override instance.
	Recurrence *time.Time
}

// IsOverride reports whether the VEVENT replaces one instance of a series.
func (p ParsedEvent) IsOverride() bool {
	return p.Recurrence != nil
}

// Parse decodes one ICS payload. VEVENTs that cannot be read are skipped;
// the second return value counts them.
func Parse(src Source, body []byte) ([]ParsedEvent, int, error) {
	if len(body) == 0 {
		return nil, 0, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}

	var (
		events  []ParsedEvent
		skipped int
	)
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(src, comp)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}

	return events, skipped, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	out.UID = value(ve, ical.ComponentPropertyUniqueId)
	if out.UID == "" {
		return out, errors.New("missing UID")
	}

	if n, err := strconv.Atoi(strings.TrimSpace(value(ve, ical.ComponentPropertySequence))); err == nil {
		out.Seq = n
	}

	out.Summary = value(ve, ical.ComponentPropertySummary)
	out.Description = value(ve, ical.ComponentPropertyDescription)
	out.Location = value(ve, ical.ComponentPropertyLocation)
	out.URL = value(ve, ical.ComponentPropertyUrl)

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start

	// DTEND is optional; a missing one leaves End zero.
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		out.AllDay = !strings.Contains(p.Value, "T") || param(p, "VALUE") == "DATE"
	}
	if out.AllDay {
		out.Start = midnight(out.Start)
		if out.End.IsZero() {
			out.End = out.Start.AddDate(0, 0, 1)
		}
	}

	out.RawRRule = value(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for part := range strings.SplitSeq(p.Value, ",") {
			if t, err := parseICSTime(part, tzOf(p)); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, err := parseICSTime(p.Value, tzOf(p)); err == nil {
			out.Recurrence = &t
		}
	}

	return out, nil
}

func value(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func param(p *ical.IANAProperty, name string) string {
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return strings.ToUpper(vs[0])
	}
	return ""
}

// tzOf resolves the TZID parameter of p; unknown zones fall back to Local.
func tzOf(p *ical.IANAProperty) *time.Location {
	if vs, ok := p.ICalParameters["TZID"]; ok && len(vs) > 0 {
		if loc, err := time.LoadLocation(vs[0]); err == nil {
			return loc
		}
	}
	return time.Local
}

// parseICSTime reads the DATE, DATE-TIME and UTC forms used by EXDATE and
// RECURRENCE-ID.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
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

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
