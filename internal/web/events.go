package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"gamecal/internal/filter"
	"gamecal/internal/model"
	"gamecal/internal/share"
)

const eventsCacheTTL = 30 * time.Second

// eventsCache holds the raw feed events of one range and, once built, the
// filtered response for one notification generation. Raw events are rebuilt
// whenever the record list is replaced, since a feed may be derived from it.
type eventsCache struct {
	days, backfill int
	recordGen      uint64
	rangeStart     time.Time
	rangeEnd       time.Time
	raw            []model.CalendarEvent
	updatedAt      time.Time

	gen  uint64
	resp *eventsResponse
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events          []eventDTO `json:"events"`
	Loading         bool       `json:"loading"`
	Generation      uint64     `json:"generation"`
	RangeStart      time.Time  `json:"range_start"`
	RangeEnd        time.Time  `json:"range_end"`
	DisplayTimeZone string     `json:"display_timezone"`
	WeekStart       string     `json:"week_start"`
}

// eventDTO is a visible event with everything needed to paint it.
type eventDTO struct {
	model.CalendarEvent
	filter.Decoration
	Record *model.Record `json:"record,omitempty"`
}

type eventDetail struct {
	Event       model.CalendarEvent `json:"event"`
	Decoration  filter.Decoration   `json:"decoration"`
	Record      *model.Record       `json:"record,omitempty"`
	Description string              `json:"description"`
	Image       string              `json:"image,omitempty"`
	Link        string              `json:"link,omitempty"`
	DateRange   string              `json:"date_range"`
	GoogleURL   string              `json:"google_url"`
	ICSURL      string              `json:"ics_url"`
}

// rangeParams reads ?days= and ?backfill=.
//   - days:     how many days ahead to include (default horizon_days)
//   - backfill: how many past days to include (default 1)
func (s *Server) rangeParams(r *http.Request) (days, backfill int) {
	q := r.URL.Query()
	days = parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	backfill = parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}
	return days, backfill
}

// detailRange is rangeParams, except that a request without range
// parameters reuses the range of the cached listing.
func (s *Server) detailRange(r *http.Request) (days, backfill int) {
	q := r.URL.Query()
	if !q.Has("days") && !q.Has("backfill") {
		s.eventsMu.RLock()
		ec := s.eventsCache
		s.eventsMu.RUnlock()
		if ec != nil {
			return ec.days, ec.backfill
		}
	}
	return s.rangeParams(r)
}

// rawEvents returns the feed events for the range, reusing a fresh cache
// entry when the range matches.
func (s *Server) rawEvents(ctx context.Context, days, backfill int) *eventsCache {
	now := s.now()
	recordGen := s.records.Status().Generation

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && ec.days == days && ec.backfill == backfill && ec.recordGen == recordGen &&
		now.Sub(ec.updatedAt) < eventsCacheTTL {
		return ec
	}

	local := now.In(s.loc)
	rangeStart := local.AddDate(0, 0, -backfill)
	rangeEnd := local.AddDate(0, 0, days)

	s.log.Info("feed events request",
		"days", days,
		"backfill", backfill,
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
	)

	raw, err := s.feed.Events(ctx, rangeStart, rangeEnd)
	if err != nil {
		s.reporter.Report(ctx, err, map[string]string{"component": "feed"})
	}
	if raw == nil {
		raw = []model.CalendarEvent{}
	}

	ec = &eventsCache{
		days:       days,
		backfill:   backfill,
		recordGen:  recordGen,
		rangeStart: rangeStart,
		rangeEnd:   rangeEnd,
		raw:        raw,
		updatedAt:  now,
	}
	s.eventsMu.Lock()
	s.eventsCache = ec
	s.eventsMu.Unlock()
	return ec
}

// visibleEvents filters and decorates the cached raw events. The response
// is memoised per notification generation: any record or filter change
// bumps the generation and forces a rebuild.
func (s *Server) visibleEvents(ctx context.Context, days, backfill int) eventsResponse {
	ec := s.rawEvents(ctx, days, backfill)
	gen := s.hub.Generation()

	s.eventsMu.RLock()
	if ec.resp != nil && ec.gen == gen {
		resp := *ec.resp
		s.eventsMu.RUnlock()
		return resp
	}
	s.eventsMu.RUnlock()

	records := s.records.Records()
	loading := s.records.Loading()
	visible := s.engine.Filter(ec.raw, records, s.selection.Selected(), loading)

	dtos := make([]eventDTO, 0, len(visible))
	for _, ev := range visible {
		dto := eventDTO{CalendarEvent: ev, Decoration: s.engine.Decorate(ev)}
		if rec, ok := filter.Match(ev.Title, records); ok {
			dto.Record = &rec
		}
		dtos = append(dtos, dto)
	}

	resp := eventsResponse{
		Events:          dtos,
		Loading:         loading,
		Generation:      gen,
		RangeStart:      ec.rangeStart,
		RangeEnd:        ec.rangeEnd,
		DisplayTimeZone: s.loc.String(),
		WeekStart:       s.cfg.WeekStart,
	}

	s.eventsMu.Lock()
	ec.gen = gen
	ec.resp = &resp
	s.eventsMu.Unlock()
	return resp
}

// handleEvents returns the visible events of the requested window.
//
// GET /api/events?days=42&backfill=1
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	days, backfill := s.rangeParams(r)
	writeJSON(w, http.StatusOK, s.visibleEvents(r.Context(), days, backfill))
}

// handleEvent serves the detail of one visible event, or its ICS file when
// the path ends in /ics. Event IDs may themselves contain slashes. Without
// ?days= and ?backfill= the event is looked up in the window of the last
// /api/events request.
//
// GET /api/events/{id}
// GET /api/events/{id}/ics
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("rest")
	asICS := false
	if trimmed, ok := strings.CutSuffix(id, "/ics"); ok {
		id, asICS = trimmed, true
	}
	if id == "" {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	days, backfill := s.detailRange(r)
	resp := s.visibleEvents(r.Context(), days, backfill)

	var found *eventDTO
	for i := range resp.Events {
		if resp.Events[i].ID == id {
			found = &resp.Events[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	if asICS {
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="event.ics"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(share.ICS(found.CalendarEvent, s.now())))
		return
	}

	writeJSON(w, http.StatusOK, s.detail(*found, r.URL.EscapedPath()))
}

func (s *Server) detail(dto eventDTO, path string) eventDetail {
	ev := dto.CalendarEvent
	d := eventDetail{
		Event:       ev,
		Decoration:  dto.Decoration,
		Record:      dto.Record,
		Description: ev.Description,
		Link:        ev.URL,
		DateRange:   share.DateRange(ev.Start, ev.End, s.loc),
		ICSURL:      path + "/ics",
	}
	if rec := dto.Record; rec != nil {
		if rec.Description != "" {
			d.Description = rec.Description
		}
		if rec.Link != "" {
			d.Link = rec.Link
		}
		d.Image = rec.Image
	}

	shared := ev
	shared.Description = d.Description
	d.GoogleURL = share.GoogleTemplateURL(shared, d.Link)
	return d
}
