package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamecal/internal/cache"
	"gamecal/internal/classify"
	"gamecal/internal/config"
	"gamecal/internal/feed"
	"gamecal/internal/filter"
	"gamecal/internal/log"
	"gamecal/internal/model"
	"gamecal/internal/notify"
	"gamecal/internal/source"
	"gamecal/internal/store"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	*Server
	rec *source.Reconciler
	hub *notify.Hub
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	hub := notify.NewHub()
	rec := source.New(source.Options{
		Fetcher: source.Static{Records: []model.Record{
			{Name: "Steam Racing Fest", Description: "Race all week", Link: "https://store.steampowered.com/sale/racing", Image: "https://img.example.com/race.png"},
			{Name: "Valorant"},
		}},
		Cache:    cache.New[model.Record](store.NewMemory(), cache.Options{}),
		Notifier: hub,
		Log:      log.Nop(),
	})

	c := classify.New(cfg.ClassifierTable())
	events := feed.Static{
		{ID: "race", Title: "Steam Racing Fest", Start: testNow.Add(24 * time.Hour), End: testNow.Add(72 * time.Hour), Description: "calendar text"},
		{ID: "vct/20260603T180000Z", Title: "Valorant Champions", Start: testNow.Add(54 * time.Hour)},
		{ID: "meetup", Title: "Random Meetup", Start: testNow.Add(72 * time.Hour)},
	}

	s := NewServer(Options{
		Config:    cfg,
		Records:   rec,
		Feed:      events,
		Engine:    filter.NewEngine(c),
		Selection: filter.NewSelection(c.Tags(), hub),
		Hub:       hub,
		Log:       log.Nop(),
		Now:       func() time.Time { return testNow },
	})
	return &testServer{Server: s, rec: rec, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func (ts *testServer) events(t *testing.T) eventsResponse {
	t.Helper()
	rr := ts.do(t, http.MethodGet, "/api/events")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp eventsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func titles(resp eventsResponse) []string {
	out := make([]string, 0, len(resp.Events))
	for _, ev := range resp.Events {
		out = append(out, ev.Title)
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestEventsHiddenWhileLoading(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.events(t)
	assert.True(t, resp.Loading)
	assert.Empty(t, resp.Events)
}

func TestEventsFilteredAndDecorated(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.rec.Get(context.Background(), false)

	resp := ts.events(t)
	assert.False(t, resp.Loading)
	assert.Equal(t, []string{"Steam Racing Fest", "Valorant Champions"}, titles(resp))
	assert.Equal(t, "UTC", resp.DisplayTimeZone)

	steam := resp.Events[0]
	assert.Equal(t, "steam", steam.Category)
	assert.Equal(t, "STEAM", steam.Badge)
	assert.Equal(t, "#1b2838", steam.Color)
	require.NotNil(t, steam.Record)
	assert.Equal(t, "Race all week", steam.Record.Description)

	assert.Equal(t, "valorant", resp.Events[1].Category)
}

func TestFilterTogglesChangeEvents(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.rec.Get(context.Background(), false)
	before := ts.events(t).Generation

	rr := ts.do(t, http.MethodPost, "/api/filters/valorant/toggle")
	require.Equal(t, http.StatusOK, rr.Code)
	var sel selectionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sel))
	assert.NotContains(t, sel.Selected, "valorant")

	resp := ts.events(t)
	assert.Greater(t, resp.Generation, before)
	assert.Equal(t, []string{"Steam Racing Fest"}, titles(resp))

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/filters/none").Code)
	assert.Empty(t, ts.events(t).Events)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/filters/all").Code)
	assert.Len(t, ts.events(t).Events, 2)
}

func TestToggleUnknownCategory(t *testing.T) {
	ts := newTestServer(t, nil)
	gen := ts.hub.Generation()

	rr := ts.do(t, http.MethodPost, "/api/filters/nintendo/toggle")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, gen, ts.hub.Generation())
}

func TestCategoriesAndLegend(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/api/filters/steam/toggle")

	var cats []categoryDTO
	rr := ts.do(t, http.MethodGet, "/api/categories")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cats))
	require.Len(t, cats, 13)
	assert.Equal(t, "steam", cats[0].ID)
	assert.False(t, cats[0].Selected)
	assert.True(t, cats[1].Selected)
	assert.Equal(t, classify.GeneralID, cats[12].ID)

	var legend []model.Category
	rr = ts.do(t, http.MethodGet, "/api/legend")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &legend))
	assert.Equal(t, classify.DefaultID, legend[len(legend)-1].ID)
}

func TestEventDetail(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.rec.Get(context.Background(), false)

	rr := ts.do(t, http.MethodGet, "/api/events/race")
	require.Equal(t, http.StatusOK, rr.Code)

	var d eventDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	assert.Equal(t, "Race all week", d.Description)
	assert.Equal(t, "https://store.steampowered.com/sale/racing", d.Link)
	assert.Equal(t, "https://img.example.com/race.png", d.Image)
	assert.Equal(t, "June 2, 2026 - June 4, 2026", d.DateRange)
	assert.Equal(t, "STEAM", d.Decoration.Badge)

	u, err := url.Parse(d.GoogleURL)
	require.NoError(t, err)
	assert.Equal(t, "calendar.google.com", u.Host)
	assert.Equal(t, "Steam Racing Fest", u.Query().Get("text"))
	assert.Contains(t, u.Query().Get("details"), "Race all week\n\nEvent Link: https://store.steampowered.com/sale/racing")
}

func TestEventDetailWithSlashInID(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.rec.Get(context.Background(), false)

	rr := ts.do(t, http.MethodGet, "/api/events/vct/20260603T180000Z")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/events/vct/20260603T180000Z/ics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/calendar")
	body := rr.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Valorant Champions")
}

func TestHiddenEventNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.rec.Get(context.Background(), false)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/events/meetup").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/events/nope").Code)
}

func TestRecordsAndRefresh(t *testing.T) {
	ts := newTestServer(t, nil)

	var before recordsResponse
	rr := ts.do(t, http.MethodGet, "/api/records")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &before))
	assert.True(t, before.Loading)
	assert.Empty(t, before.Records)

	rr = ts.do(t, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rr.Code)
	var ref refreshResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ref))
	assert.Equal(t, 2, ref.Count)
	assert.Equal(t, source.OriginRemote, ref.Status.Origin)

	var after recordsResponse
	rr = ts.do(t, http.MethodGet, "/api/records")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &after))
	assert.False(t, after.Loading)
	assert.Len(t, after.Records, 2)
}

func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "hunter2"}
	})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/events").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "hunter2")
	rr := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/updates", nil)
	rr = httptest.NewRecorder()
	ts.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdatesStream(t *testing.T) {
	ts := newTestServer(t, nil)
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/updates"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var hello notify.Change
	require.NoError(t, wsjson.Read(ctx, conn, &hello))
	assert.Equal(t, "hello", hello.Reason)

	resp, err := http.Post(srv.URL+"/api/filters/steam/toggle", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	var c notify.Change
	require.NoError(t, wsjson.Read(ctx, conn, &c))
	assert.Equal(t, "filter", c.Reason)
	assert.Equal(t, hello.Generation+1, c.Generation)
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, parseIntDefault("", 7))
	assert.Equal(t, 7, parseIntDefault("x", 7))
	assert.Equal(t, 3, parseIntDefault("3", 7))
}

func TestRecordFeedRebuiltAfterLoad(t *testing.T) {
	cfg := config.DefaultConfig()
	hub := notify.NewHub()
	rec := source.New(source.Options{
		Fetcher: source.Static{Records: []model.Record{
			{ID: "srf", Name: "Steam Racing Fest", Start: testNow.Add(48 * time.Hour)},
		}},
		Cache:    cache.New[model.Record](store.NewMemory(), cache.Options{}),
		Notifier: hub,
		Log:      log.Nop(),
	})
	c := classify.New(cfg.ClassifierTable())
	ts := &testServer{
		Server: NewServer(Options{
			Config:    cfg,
			Records:   rec,
			Feed:      feed.Records{Source: rec},
			Engine:    filter.NewEngine(c),
			Selection: filter.NewSelection(c.Tags(), hub),
			Hub:       hub,
			Log:       log.Nop(),
			Now:       func() time.Time { return testNow },
		}),
		rec: rec,
		hub: hub,
	}

	before := ts.events(t)
	assert.True(t, before.Loading)
	assert.Empty(t, before.Events)

	rec.Get(context.Background(), false)
	after := ts.events(t)
	assert.False(t, after.Loading)
	assert.Equal(t, []string{"Steam Racing Fest"}, titles(after))

	rr := ts.do(t, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Steam Racing Fest"}, titles(ts.events(t)))
}

func TestEventDetailUsesListingWindow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.rec.Get(context.Background(), false)
	ts.Server.feed = feed.Static{
		{ID: "late", Title: "Steam Racing Fest", Start: testNow.AddDate(0, 0, 80)},
	}

	rr := ts.do(t, http.MethodGet, "/api/events?days=90")
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/events/late").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/events/late?days=30").Code)
}
