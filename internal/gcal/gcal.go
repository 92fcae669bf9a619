// Package gcal reads a public Google Calendar through the Calendar API v3
// with an API key.
package gcal

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"gamecal/internal/log"
	"gamecal/internal/model"
)

type Config struct {
	APIKey     string
	CalendarID string
	// Endpoint overrides the API base URL.
	Endpoint string
}

// Client is a feed.Feed over one Google calendar.
type Client struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
	log        *log.Logger
}

// New builds a Client. When the key or the calendar ID is missing the client
// is still usable and returns no events.
func New(ctx context.Context, cfg Config, loc *time.Location, logger *log.Logger) (*Client, error) {
	if loc == nil {
		loc = time.Local
	}
	c := &Client{calendarID: cfg.CalendarID, loc: loc, log: logger}
	if cfg.APIKey == "" || cfg.CalendarID == "" {
		logger.Warn("google calendar not configured; feed is empty")
		return c, nil
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google calendar client: %w", err)
	}
	c.svc = svc
	return c, nil
}

// Configured reports whether the client will talk to the API.
func (c *Client) Configured() bool {
	return c.svc != nil
}

func (c *Client) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	if c.svc == nil {
		return []model.CalendarEvent{}, nil
	}

	out := []model.CalendarEvent{}
	call := c.svc.Events.List(c.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		MaxResults(250)

	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, ok := convert(item, c.loc)
			if ok {
				out = append(out, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list google calendar events: %w", err)
	}

	c.log.Debug("google calendar loaded", "events", len(out))
	return out, nil
}

func convert(item *calendar.Event, loc *time.Location) (model.CalendarEvent, bool) {
	start, allDay, ok := when(item.Start, loc)
	if !ok {
		return model.CalendarEvent{}, false
	}
	end, _, _ := when(item.End, loc)

	return model.CalendarEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		URL:         item.HtmlLink,
		Location:    item.Location,
		Description: item.Description,
		Extended: map[string]string{
			"calendar_event_id": item.Id,
		},
	}, true
}

// when reads an EventDateTime, which carries either a date or a date-time.
func when(dt *calendar.EventDateTime, loc *time.Location) (time.Time, bool, bool) {
	if dt == nil {
		return time.Time{}, false, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false, false
		}
		return t.In(loc), false, true
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true
	}
	return time.Time{}, false, false
}
