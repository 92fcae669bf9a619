package ics

import (
	"context"
	"errors"
	"time"

	"gamecal/internal/log"
	"gamecal/internal/model"
)

// Feed serves calendar events from one or more ICS subscriptions.
type Feed struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location
	log     *log.Logger
}

func NewFeed(f *Fetcher, sources []Source, loc *time.Location, logger *log.Logger) *Feed {
	return &Feed{fetcher: f, sources: sources, loc: loc, log: logger}
}

// Events returns the expanded events of every source between from and to.
// Sources that fail are skipped; the joined error describes them.
func (f *Feed) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	if len(f.sources) == 0 {
		return []model.CalendarEvent{}, nil
	}

	results, errs := f.fetcher.FetchAll(ctx, f.sources)

	var parsed []ParsedEvent
	for _, res := range results {
		evs, skipped, err := Parse(res.Source, res.Body)
		if err != nil {
			f.log.Error("ics parse failed", err, "id", res.Source.ID)
			errs = append(errs, err)
			continue
		}
		if skipped > 0 {
			f.log.Warn("ics events skipped", "id", res.Source.ID, "skipped", skipped)
		}
		parsed = append(parsed, evs...)
	}

	exp, err := Expand(parsed, ExpandConfig{Location: f.loc, From: from, To: to})
	if err != nil {
		return nil, err
	}
	for _, uid := range exp.Truncated {
		f.log.Warn("ics occurrences truncated", "uid", uid)
	}
	for _, uid := range exp.BadRules {
		f.log.Warn("ics rrule unreadable", "uid", uid)
	}

	f.log.Debug("ics feed loaded", "sources", len(results), "events", len(exp.Events))
	return exp.Events, errors.Join(errs...)
}
