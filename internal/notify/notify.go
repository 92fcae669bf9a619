// Package notify fans out "data changed" signals to anything that renders
// filtered data, so cached visibility decisions can be thrown away.
package notify

import (
	"sync"
	"time"
)

// Notifier is what data owners call after replacing their state.
type Notifier interface {
	NotifyDataChanged(reason string)
}

// Change is delivered to subscribers. Generation increases by one on every
// notification.
type Change struct {
	Generation uint64    `json:"generation"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// Hub is a Notifier with subscribers. Slow subscribers miss intermediate
// changes but always see a later generation.
type Hub struct {
	mu   sync.Mutex
	gen  uint64
	subs map[chan Change]struct{}
	now  func() time.Time
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Change]struct{}), now: time.Now}
}

func (h *Hub) NotifyDataChanged(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.gen++
	c := Change{Generation: h.gen, Reason: reason, At: h.now()}
	for ch := range h.subs {
		select {
		case ch <- c:
		default:
			// Drop the stale change and keep the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c:
			default:
			}
		}
	}
}

// Generation returns the number of notifications sent so far.
func (h *Hub) Generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen
}

// Subscribe returns a channel of changes and a function that cancels the
// subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 4)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Func adapts a plain function to Notifier.
type Func func(reason string)

func (f Func) NotifyDataChanged(reason string) { f(reason) }

// Nop discards notifications.
var Nop Notifier = Func(func(string) {})
