package filter

import (
	"slices"
	"sync"

	"gamecal/internal/notify"
)

// Selection is the set of selected category tags. It is always a subset of
// the universe, and every mutation notifies so renderers re-evaluate
// visibility.
type Selection struct {
	mu       sync.RWMutex
	universe []string
	selected map[string]bool
	notifier notify.Notifier
}

// NewSelection starts with every tag of universe selected.
func NewSelection(universe []string, n notify.Notifier) *Selection {
	if n == nil {
		n = notify.Nop
	}
	s := &Selection{notifier: n}
	s.reset(universe)
	return s
}

// SetUniverse replaces the known tags and selects all of them.
func (s *Selection) SetUniverse(universe []string) {
	s.mu.Lock()
	s.reset(universe)
	s.mu.Unlock()
	s.notifier.NotifyDataChanged("categories")
}

func (s *Selection) reset(universe []string) {
	s.universe = make([]string, 0, len(universe))
	s.selected = make(map[string]bool, len(universe))
	for _, tag := range universe {
		if tag == "" || s.selected[tag] {
			continue
		}
		s.universe = append(s.universe, tag)
		s.selected[tag] = true
	}
}

// Toggle flips one tag. Tags outside the universe are ignored and reported
// as not selected.
func (s *Selection) Toggle(tag string) bool {
	s.mu.Lock()
	if !slices.Contains(s.universe, tag) {
		s.mu.Unlock()
		return false
	}
	now := !s.selected[tag]
	if now {
		s.selected[tag] = true
	} else {
		delete(s.selected, tag)
	}
	s.mu.Unlock()

	s.notifier.NotifyDataChanged("filter")
	return now
}

func (s *Selection) SelectAll() {
	s.mu.Lock()
	for _, tag := range s.universe {
		s.selected[tag] = true
	}
	s.mu.Unlock()
	s.notifier.NotifyDataChanged("filter")
}

func (s *Selection) DeselectAll() {
	s.mu.Lock()
	clear(s.selected)
	s.mu.Unlock()
	s.notifier.NotifyDataChanged("filter")
}

// Selected returns the selected tags in universe order.
func (s *Selection) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.selected))
	for _, tag := range s.universe {
		if s.selected[tag] {
			out = append(out, tag)
		}
	}
	return out
}

func (s *Selection) Has(tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected[tag]
}

// Universe returns the known tags.
func (s *Selection) Universe() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.universe)
}
