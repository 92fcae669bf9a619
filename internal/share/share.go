// Package share builds the "add to my calendar" outputs for one event.
package share

import (
	"net/url"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"gamecal/internal/model"
)

const (
	googleRender = "https://calendar.google.com/calendar/render"
	googleLayout = "20060102T150405Z"
	dateLayout   = "January 2, 2006"

	// DefaultDuration is assumed for events without an end.
	DefaultDuration = time.Hour
)

// GoogleTemplateURL returns a Google Calendar template link prefilled with
// the event. link, when set, is appended to the details text.
func GoogleTemplateURL(ev model.CalendarEvent, link string) string {
	start := ev.Start.UTC()
	end := ev.End.UTC()
	if !ev.HasEnd() {
		end = start.Add(DefaultDuration)
	}

	details := ev.Description
	if link != "" {
		details += "\n\nEvent Link: " + link
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", ev.Title)
	q.Set("dates", start.Format(googleLayout)+"/"+end.Format(googleLayout))
	q.Set("details", details)
	if ev.Location != "" {
		q.Set("location", ev.Location)
	}

	return googleRender + "?" + q.Encode()
}

// DateRange renders the human date span of an event in loc, e.g.
// "June 7, 2024" or "June 7, 2024 - June 9, 2024".
func DateRange(start, end time.Time, loc *time.Location) string {
	if start.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	s := start.In(loc)
	if end.IsZero() {
		return s.Format(dateLayout)
	}
	e := end.In(loc)
	if sameDay(s, e) {
		return s.Format(dateLayout)
	}
	return s.Format(dateLayout) + " - " + e.Format(dateLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ICS renders ev as a single-event iCalendar document.
func ICS(ev model.CalendarEvent, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//gamecal//EN")

	uid := ev.ID
	if uid == "" {
		uid = uuid.NewString()
	}

	vev := cal.AddEvent(uid + "@gamecal")
	vev.SetDtStampTime(now.UTC())
	vev.SetSummary(ev.Title)

	if ev.AllDay {
		vev.SetAllDayStartAt(ev.Start)
		if ev.HasEnd() {
			vev.SetAllDayEndAt(ev.End)
		}
	} else {
		end := ev.End
		if !ev.HasEnd() {
			end = ev.Start.Add(DefaultDuration)
		}
		vev.SetStartAt(ev.Start.UTC())
		vev.SetEndAt(end.UTC())
	}

	if ev.Location != "" {
		vev.SetLocation(ev.Location)
	}
	if ev.Description != "" {
		vev.SetDescription(ev.Description)
	}
	if ev.URL != "" {
		vev.SetURL(ev.URL)
	}

	return cal.Serialize()
}
