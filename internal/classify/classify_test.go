package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gamecal/internal/classify"
	"gamecal/internal/model"
)

func TestEmptyEventIsDefault(t *testing.T) {
	c := classify.New(classify.DefaultTable())

	res := c.Classify(model.CalendarEvent{})
	assert.Equal(t, classify.DefaultID, res.Category)
	assert.Equal(t, classify.NeutralColor, res.Color)
}

func TestFirstMatchWinsInTableOrder(t *testing.T) {
	c := classify.New(classify.DefaultTable())

	// "riot" selects valorant, "steam" selects steam; steam comes first.
	res := c.Classify(model.CalendarEvent{Title: "Riot showcase on Steam"})
	assert.Equal(t, "steam", res.Category)
	assert.Equal(t, "#1b2838", res.Color)

	res = c.Classify(model.CalendarEvent{Title: "Riot showcase"})
	assert.Equal(t, "valorant", res.Category)
}

func TestSearchesDescriptionAndLocation(t *testing.T) {
	c := classify.New(classify.DefaultTable())

	res := c.Classify(model.CalendarEvent{
		Title:       "Summer Showcase",
		Description: "Live from the MOJANG studio",
	})
	assert.Equal(t, "minecraft", res.Category)

	res = c.Classify(model.CalendarEvent{Title: "Keynote", Location: "Sony Hall"})
	assert.Equal(t, "psn", res.Category)
}

func TestGeneralAndDefault(t *testing.T) {
	c := classify.New(classify.DefaultTable())

	res := c.Classify(model.CalendarEvent{Title: "Regional Esports Finals"})
	assert.Equal(t, classify.GeneralID, res.Category)
	assert.Equal(t, classify.GeneralColor, res.Color)

	res = c.Classify(model.CalendarEvent{Title: "Board meeting"})
	assert.Equal(t, classify.DefaultID, res.Category)
	assert.Equal(t, "DEFAULT", res.Badge())
}

func TestSubstringSemantics(t *testing.T) {
	c := classify.New(classify.DefaultTable())

	// "lol" is a keyword of league and matches inside other words.
	res := c.Classify(model.CalendarEvent{Title: "Lollapalooza"})
	assert.Equal(t, "league", res.Category)
}

func TestUnknownColorIsNeutral(t *testing.T) {
	c := classify.New(classify.DefaultTable())
	assert.Equal(t, classify.NeutralColor, c.Color("nope"))
}

func TestUniverseAndLegend(t *testing.T) {
	c := classify.New(classify.DefaultTable())

	tags := c.Tags()
	assert.Len(t, tags, 13)
	assert.Equal(t, "steam", tags[0])
	assert.Equal(t, classify.GeneralID, tags[12])

	legend := c.Legend()
	assert.Equal(t, classify.DefaultID, legend[len(legend)-1].ID)
	assert.NotContains(t, tags, classify.DefaultID)
}

func TestFromCategories(t *testing.T) {
	c := classify.New(classify.FromCategories([]model.Category{
		{ID: "1", Label: "Conventions", Color: "#111111"},
		{ID: "2", Label: "Sales", Color: ""},
	}))

	res := c.Classify(model.CalendarEvent{Title: "Spring sales weekend"})
	assert.Equal(t, "2", res.Category)
	assert.Equal(t, classify.NeutralColor, res.Color)

	// A source-assigned category wins over the text.
	res = c.Classify(model.CalendarEvent{Title: "Spring sales weekend", CategoryID: "1"})
	assert.Equal(t, "1", res.Category)
	assert.Equal(t, "#111111", res.Color)

	// Unknown assigned IDs fall back to the keyword search.
	res = c.Classify(model.CalendarEvent{Title: "Nothing here", CategoryID: "9"})
	assert.Equal(t, classify.DefaultID, res.Category)
}
