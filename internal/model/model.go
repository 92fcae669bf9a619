package model

import "time"

// CalendarEvent is a raw event as delivered by a calendar feed. It is built
// fresh for every feed pull and never mutated by the filtering pipeline.
type CalendarEvent struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// Start is always set; End is the zero time when the feed had none.
	Start  time.Time `json:"start"`
	End    time.Time `json:"end,omitzero"`
	AllDay bool      `json:"all_day"`

	// URL links back to the event in its source calendar.
	URL         string `json:"url,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`

	// CategoryID is set by sources that assign categories themselves
	// (the database variant).
	CategoryID string `json:"category_id,omitempty"`

	// Extended carries source-specific fields (feed id, recurrence key, ...).
	Extended map[string]string `json:"extended,omitempty"`
}

// HasEnd reports whether the feed supplied an end instant.
func (e CalendarEvent) HasEnd() bool {
	return !e.End.IsZero()
}

// Record is an authoritative entry from the remote source of truth. Every
// source variant normalizes into this one shape; only Name is required.
type Record struct {
	// ID is the backend key when the source has one.
	ID string `json:"id,omitempty"`

	// Name is the join key used to match calendar events.
	Name string `json:"name"`

	// Show is nil when the source schema has no visibility flag.
	Show *bool `json:"show,omitempty"`

	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Link        string    `json:"link,omitempty"`
	Location    string    `json:"location,omitempty"`
	Category    string    `json:"category,omitempty"`
	Start       time.Time `json:"start,omitzero"`
	End         time.Time `json:"end,omitzero"`
}

// Visible applies the source visibility flag. Records without the flag
// are visible.
func (r Record) Visible() bool {
	return r.Show == nil || *r.Show
}

// Category is a filterable event tag with its display metadata.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Bool returns a pointer to v, for Record.Show literals.
func Bool(v bool) *bool {
	return &v
}
