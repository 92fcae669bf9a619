package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamecal/internal/classify"
	"gamecal/internal/filter"
	"gamecal/internal/model"
	"gamecal/internal/notify"
)

func engine() *filter.Engine {
	return filter.NewEngine(classify.New(classify.DefaultTable()))
}

var all = classify.New(classify.DefaultTable()).Tags()

func TestLoadingGateHidesEverything(t *testing.T) {
	e := engine()
	ev := model.CalendarEvent{Title: "Steam Racing Fest"}

	assert.False(t, e.Visible(ev, nil, all, true))
	assert.False(t, e.Visible(ev, []model.Record{{Name: "Steam Racing Fest"}}, all, true))
	assert.Empty(t, e.Filter([]model.CalendarEvent{ev}, nil, all, true))
}

func TestEmptySelectionHidesEverything(t *testing.T) {
	e := engine()
	ev := model.CalendarEvent{Title: "Steam Racing Fest"}

	assert.False(t, e.Visible(ev, nil, nil, false))
	assert.False(t, e.Visible(ev, []model.Record{{Name: "Steam Racing Fest"}}, []string{}, false))
}

func TestEmptyListIsOpen(t *testing.T) {
	e := engine()

	assert.True(t, e.Visible(model.CalendarEvent{Title: "whatever steam"}, nil, []string{"steam"}, false))
	// Even an untitled event passes when there is no list.
	assert.True(t, e.Visible(model.CalendarEvent{}, nil, []string{classify.DefaultID}, false))
}

func TestUntitledFailsAgainstList(t *testing.T) {
	e := engine()
	assert.False(t, e.Visible(model.CalendarEvent{}, []model.Record{{Name: "x"}}, []string{classify.DefaultID}, false))
}

func TestFuzzyMatchBothDirections(t *testing.T) {
	recs := []model.Record{{Name: "Steam Fest"}}

	_, ok := filter.Match("2024 Steam Fest Event", recs)
	assert.True(t, ok)

	_, ok = filter.Match("steam", recs)
	assert.True(t, ok)

	_, ok = filter.Match("Epic Mega Sale", recs)
	assert.False(t, ok)
}

func TestMatchReturnsFirstRecord(t *testing.T) {
	recs := []model.Record{
		{Name: "Steam", Description: "first"},
		{Name: "Steam Racing Fest", Description: "second"},
	}
	rec, ok := filter.Match("Steam Racing Fest", recs)
	require.True(t, ok)
	assert.Equal(t, "first", rec.Description)
}

func TestEndToEnd(t *testing.T) {
	e := engine()
	recs := []model.Record{{Name: "Steam Racing Fest", Show: model.Bool(true)}}
	ev := model.CalendarEvent{Title: "Steam Racing Fest 2024"}

	require.Equal(t, "steam", e.Decorate(ev).Category)
	assert.True(t, e.Visible(ev, recs, []string{"steam"}, false))
	assert.False(t, e.Visible(ev, recs, []string{"xbox"}, false))
}

func TestFilterKeepsOrder(t *testing.T) {
	e := engine()
	events := []model.CalendarEvent{
		{ID: "1", Title: "Xbox Showcase"},
		{ID: "2", Title: "Board meeting"},
		{ID: "3", Title: "Steam Next Fest"},
	}

	got := e.Filter(events, nil, []string{"steam", "xbox"}, false)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestDecorate(t *testing.T) {
	d := engine().Decorate(model.CalendarEvent{Title: "Valorant Champions"})
	assert.Equal(t, filter.Decoration{Category: "valorant", Color: "#ff4655", Badge: "VALORANT"}, d)
}

func TestSelection(t *testing.T) {
	var reasons []string
	s := filter.NewSelection([]string{"steam", "xbox", "steam"}, notify.Func(func(r string) {
		reasons = append(reasons, r)
	}))

	assert.Equal(t, []string{"steam", "xbox"}, s.Selected())

	assert.False(t, s.Toggle("steam"))
	assert.False(t, s.Has("steam"))
	assert.Equal(t, []string{"xbox"}, s.Selected())

	assert.True(t, s.Toggle("steam"))
	assert.Equal(t, []string{"steam", "xbox"}, s.Selected())

	// Unknown tags never enter the set.
	assert.False(t, s.Toggle("nope"))
	assert.False(t, s.Has("nope"))

	s.DeselectAll()
	assert.Empty(t, s.Selected())

	s.SelectAll()
	assert.Equal(t, []string{"steam", "xbox"}, s.Selected())

	s.SetUniverse([]string{"1", "2", "3"})
	assert.Equal(t, []string{"1", "2", "3"}, s.Selected())
	assert.False(t, s.Has("steam"))

	assert.Equal(t, []string{"filter", "filter", "filter", "filter", "categories"}, reasons)
}
