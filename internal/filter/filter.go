// Package filter decides which calendar events are shown.
//
// An event is visible when all three stages pass, evaluated in order:
//
//  1. the authoritative list has finished its first load;
//  2. the list is empty, or the event title and some record name contain one
//     another (case-insensitive, either direction);
//  3. the event's category is selected. An empty selection shows nothing.
package filter

import (
	"slices"
	"strings"

	"gamecal/internal/classify"
	"gamecal/internal/model"
)

// Engine binds the filter stages to a classifier.
type Engine struct {
	classifier *classify.Classifier
}

func NewEngine(c *classify.Classifier) *Engine {
	return &Engine{classifier: c}
}

// Classifier returns the bound classifier.
func (e *Engine) Classifier() *classify.Classifier {
	return e.classifier
}

// Visible reports whether ev should be shown.
func (e *Engine) Visible(ev model.CalendarEvent, records []model.Record, selected []string, loading bool) bool {
	if loading {
		return false
	}
	if !InList(ev.Title, records) {
		return false
	}
	return slices.Contains(selected, e.classifier.Classify(ev).Category)
}

// Filter returns the visible subsequence of events, preserving order.
func (e *Engine) Filter(events []model.CalendarEvent, records []model.Record, selected []string, loading bool) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	if loading {
		return out
	}
	for _, ev := range events {
		if e.Visible(ev, records, selected, false) {
			out = append(out, ev)
		}
	}
	return out
}

// Decoration is what a renderer needs to paint one event.
type Decoration struct {
	Category string `json:"category"`
	Color    string `json:"color"`
	Badge    string `json:"badge"`
}

func (e *Engine) Decorate(ev model.CalendarEvent) Decoration {
	res := e.classifier.Classify(ev)
	return Decoration{Category: res.Category, Color: res.Color, Badge: res.Badge()}
}

// InList is the membership stage. An empty list lets everything through; an
// untitled event never matches a non-empty list.
func InList(title string, records []model.Record) bool {
	if len(records) == 0 {
		return true
	}
	_, ok := Match(title, records)
	return ok
}

// Match returns the first record whose name and title contain one another.
func Match(title string, records []model.Record) (model.Record, bool) {
	t := strings.ToLower(title)
	if t == "" {
		return model.Record{}, false
	}
	for _, rec := range records {
		name := strings.ToLower(rec.Name)
		if strings.Contains(t, name) || strings.Contains(name, t) {
			return rec, true
		}
	}
	return model.Record{}, false
}
