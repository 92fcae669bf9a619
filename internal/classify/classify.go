// Package classify maps free event text to a category tag and colour.
//
// The algorithm is a first match over an ordered keyword table: the search
// text is the lower-cased title, description and location joined by spaces,
// and the first rule (in table order) with any keyword contained in that
// text wins. If no rule matches, the general keyword list decides between the
// general category and the default one. The table itself is configuration.
package classify

import (
	"strings"

	"gamecal/internal/model"
)

const (
	// NeutralColor is used for the default category and for any tag the
	// colour table does not know.
	NeutralColor = "#5f6368"

	GeneralID    = "gaming"
	GeneralColor = "#8e44ad"
	DefaultID    = "default"
)

// Rule binds a category to the keywords that select it.
type Rule struct {
	Category model.Category
	Keywords []string
}

// Table is the ordered configuration the classifier runs on.
type Table struct {
	Rules           []Rule
	General         []string
	GeneralCategory model.Category
	DefaultCategory model.Category
}

// Result is the outcome of classifying one event.
type Result struct {
	Category string `json:"category"`
	Color    string `json:"color"`
}

// Badge is the upper-cased tag shown on a rendered event.
func (r Result) Badge() string {
	return strings.ToUpper(r.Category)
}

// Classifier is safe for concurrent use; it never mutates its table.
type Classifier struct {
	rules   []Rule
	general []string
	gen     model.Category
	def     model.Category
	colors  map[string]string
	known   map[string]bool
}

// New builds a Classifier. Keywords are lower-cased once here.
func New(t Table) *Classifier {
	if t.DefaultCategory.ID == "" {
		t.DefaultCategory = model.Category{ID: DefaultID, Label: "Other", Color: NeutralColor}
	}
	if t.DefaultCategory.Color == "" {
		t.DefaultCategory.Color = NeutralColor
	}

	c := &Classifier{
		gen:    t.GeneralCategory,
		def:    t.DefaultCategory,
		colors: map[string]string{t.DefaultCategory.ID: t.DefaultCategory.Color},
		known:  map[string]bool{},
	}

	for _, r := range t.Rules {
		if r.Category.ID == "" {
			continue
		}
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				kws = append(kws, kw)
			}
		}
		c.rules = append(c.rules, Rule{Category: r.Category, Keywords: kws})
		c.colors[r.Category.ID] = colorOr(r.Category.Color)
		c.known[r.Category.ID] = true
	}

	for _, kw := range t.General {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			c.general = append(c.general, kw)
		}
	}
	if c.gen.ID != "" {
		c.colors[c.gen.ID] = colorOr(c.gen.Color)
		c.known[c.gen.ID] = true
	}

	return c
}

// Classify returns the category and colour for ev. It never fails: events
// with no text at all resolve to the default category.
func (c *Classifier) Classify(ev model.CalendarEvent) Result {
	if ev.CategoryID != "" && c.known[ev.CategoryID] {
		return c.result(ev.CategoryID)
	}

	text := strings.ToLower(ev.Title) + " " +
		strings.ToLower(ev.Description) + " " +
		strings.ToLower(ev.Location)

	for _, r := range c.rules {
		if containsAny(text, r.Keywords) {
			return c.result(r.Category.ID)
		}
	}

	if c.gen.ID != "" && containsAny(text, c.general) {
		return c.result(c.gen.ID)
	}

	return c.result(c.def.ID)
}

// Color looks up the display colour of a tag.
func (c *Classifier) Color(tag string) string {
	if col, ok := c.colors[tag]; ok {
		return col
	}
	return NeutralColor
}

// Universe lists the selectable categories in table order, general last.
// The default category is not selectable.
func (c *Classifier) Universe() []model.Category {
	out := make([]model.Category, 0, len(c.rules)+1)
	for _, r := range c.rules {
		out = append(out, c.withColor(r.Category))
	}
	if c.gen.ID != "" {
		out = append(out, c.withColor(c.gen))
	}
	return out
}

// Tags returns the IDs of Universe.
func (c *Classifier) Tags() []string {
	u := c.Universe()
	tags := make([]string, len(u))
	for i, cat := range u {
		tags[i] = cat.ID
	}
	return tags
}

// Legend is the colour legend: every rule category plus the default.
func (c *Classifier) Legend() []model.Category {
	out := make([]model.Category, 0, len(c.rules)+1)
	for _, r := range c.rules {
		out = append(out, c.withColor(r.Category))
	}
	return append(out, c.def)
}

func (c *Classifier) result(tag string) Result {
	return Result{Category: tag, Color: c.Color(tag)}
}

func (c *Classifier) withColor(cat model.Category) model.Category {
	cat.Color = c.Color(cat.ID)
	if cat.Label == "" {
		cat.Label = cat.ID
	}
	return cat
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func colorOr(c string) string {
	if c == "" {
		return NeutralColor
	}
	return c
}
