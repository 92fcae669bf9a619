package ics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamecal/internal/ics"
	"gamecal/internal/log"
	"gamecal/internal/store"
)

var june = ics.ExpandConfig{
	Location: time.UTC,
	From:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	To:       time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
}

func readFixture(t *testing.T) []byte {
	t.Helper()
	body, err := os.ReadFile("testdata/events.ics")
	require.NoError(t, err)
	return body
}

func TestParse(t *testing.T) {
	evs, skipped, err := ics.Parse(ics.Source{ID: "main"}, readFixture(t))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, evs, 4)

	assert.Equal(t, "single-1", evs[0].UID)
	assert.Equal(t, "https://example.com/xbox", evs[0].URL)
	assert.Equal(t, "Online", evs[0].Location)

	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", evs[1].RawRRule)
	require.Len(t, evs[1].ExDates, 1)

	assert.True(t, evs[2].IsOverride())
	assert.True(t, evs[3].AllDay)
	assert.Equal(t, 24*time.Hour, evs[3].End.Sub(evs[3].Start))
}

func TestParseEmpty(t *testing.T) {
	_, _, err := ics.Parse(ics.Source{}, nil)
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	evs, _, err := ics.Parse(ics.Source{ID: "main"}, readFixture(t))
	require.NoError(t, err)

	res, err := ics.Expand(evs, june)
	require.NoError(t, err)
	require.Len(t, res.Events, 5)

	titles := make([]string, len(res.Events))
	for i, ev := range res.Events {
		titles[i] = ev.Title
	}
	assert.Equal(t, []string{
		"Valorant Weekly Cup",
		"Xbox Games Showcase",
		"Steam Next Fest",
		"Valorant Weekly Cup (moved)",
		"Valorant Weekly Cup",
	}, titles)

	moved := res.Events[3]
	assert.Equal(t, 15, moved.Start.Hour())
	assert.Equal(t, "weekly-1/20240615T150000Z", moved.ID)
	assert.Equal(t, "weekly-1", moved.Extended["uid"])
	assert.Equal(t, "main", moved.Extended["source"])

	assert.Equal(t, "single-1", res.Events[1].ID)
	assert.Equal(t, time.Hour, res.Events[1].End.Sub(res.Events[1].Start))
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	_, err := ics.Expand(nil, ics.ExpandConfig{From: june.To, To: june.From})
	assert.Error(t, err)
}

func TestExpandCap(t *testing.T) {
	evs := []ics.ParsedEvent{{
		UID:      "daily",
		Summary:  "Daily",
		Start:    june.From,
		End:      june.From.Add(time.Hour),
		RawRRule: "FREQ=DAILY",
	}}
	cfg := june
	cfg.MaxOccurrences = 3

	res, err := ics.Expand(evs, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Events, 3)
	assert.Equal(t, []string{"daily"}, res.Truncated)
}

func TestFetcherConditionalAndFallback(t *testing.T) {
	body := readFixture(t)
	var calls atomic.Int32
	var fail atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := ics.NewFetcher(store.NewMemory(), log.Nop())
	src := ics.Source{ID: "main", URL: srv.URL + "/cal.ics"}

	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)

	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, body, res.Body)

	fail.Store(true)
	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcherErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := ics.NewFetcher(nil, log.Nop())
	results, errs := f.FetchAll(context.Background(), []ics.Source{{ID: "x", URL: srv.URL}, {ID: "empty"}})
	assert.Empty(t, results)
	assert.Len(t, errs, 2)
}

func TestFeedEvents(t *testing.T) {
	body := readFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	feed := ics.NewFeed(
		ics.NewFetcher(nil, log.Nop()),
		[]ics.Source{{ID: "main", URL: srv.URL}},
		time.UTC,
		log.Nop(),
	)
	evs, err := feed.Events(context.Background(), june.From, june.To)
	require.NoError(t, err)
	assert.Len(t, evs, 5)
}
