// Package feed defines where raw calendar events come from.
package feed

import (
	"context"
	"sort"
	"strconv"
	"time"

	"gamecal/internal/model"
)

// Feed produces the raw events between from and to. An implementation may
// return events together with an error when only some of its inputs failed.
type Feed interface {
	Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
}

// RecordLister is the part of the reconciler the Records feed needs.
type RecordLister interface {
	Records() []model.Record
}

// Records turns the authoritative records themselves into calendar events.
// It serves setups where the database is both the calendar and the source of
// truth. Records without a start are skipped.
type Records struct {
	Source RecordLister
}

func (f Records) Events(_ context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	recs := f.Source.Records()
	out := make([]model.CalendarEvent, 0, len(recs))

	for i, rec := range recs {
		if rec.Start.IsZero() {
			continue
		}
		end := rec.End
		if end.IsZero() {
			end = rec.Start
		}
		if end.Before(from) || rec.Start.After(to) {
			continue
		}

		id := rec.ID
		if id == "" {
			id = "record-" + strconv.Itoa(i)
		}
		out = append(out, model.CalendarEvent{
			ID:          id,
			Title:       rec.Name,
			Start:       rec.Start,
			End:         rec.End,
			URL:         rec.Link,
			Location:    rec.Location,
			Description: rec.Description,
			CategoryID:  rec.Category,
			Extended: map[string]string{
				"image": rec.Image,
				"link":  rec.Link,
			},
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Static serves a fixed event list.
type Static []model.CalendarEvent

func (s Static) Events(_ context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	out := make([]model.CalendarEvent, 0, len(s))
	for _, ev := range s {
		if ev.Start.Before(to) && !ev.Start.Before(from) {
			out = append(out, ev)
		}
	}
	return out, nil
}
