// Package cache persists the last successful fetch of a list together with
// the time it was fetched, and expires it after a fixed TTL.
//
// Payload and timestamp are written as a single JSON document under a single
// key so that no reader can ever observe one without the other. Persistence
// problems are absorbed here: a failing medium degrades to "no cache", never
// to an error for the caller.
package cache

import (
	"encoding/json"
	"time"

	"gamecal/internal/log"
	"gamecal/internal/store"
)

const (
	DefaultTTL = 2 * time.Hour
	DefaultKey = "gamecal.records"
)

// Entry is one cached payload and the instant it was fetched.
type Entry[T any] struct {
	Payload   []T       `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Age reports how old the entry is at now.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

type Options struct {
	Key string
	TTL time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
	Log *log.Logger
}

// Store is a typed TTL cache over a store.Medium.
type Store[T any] struct {
	medium store.Medium
	key    string
	ttl    time.Duration
	now    func() time.Time
	log    *log.Logger
}

func New[T any](m store.Medium, opts Options) *Store[T] {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store[T]{
		medium: m,
		key:    opts.Key,
		ttl:    opts.TTL,
		now:    opts.Now,
		log:    opts.Log,
	}
}

// TTL returns the configured time to live.
func (s *Store[T]) TTL() time.Duration {
	return s.ttl
}

// Load returns the cached entry if one exists and is younger than the TTL.
// Corrupt and expired entries are erased as a side effect.
func (s *Store[T]) Load() (Entry[T], bool) {
	var zero Entry[T]

	raw, ok, err := s.medium.Get(s.key)
	if err != nil {
		s.log.Error("cache: read failed", err, "key", s.key)
		return zero, false
	}
	if !ok {
		return zero, false
	}

	var e Entry[T]
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.FetchedAt.IsZero() {
		s.log.Warn("cache: dropping unreadable entry", "key", s.key)
		s.erase()
		return zero, false
	}

	if e.Age(s.now()) >= s.ttl {
		s.log.Debug("cache: entry expired", "key", s.key, "fetched_at", e.FetchedAt)
		s.erase()
		return zero, false
	}

	return e, true
}

// Save stores payload stamped with the current time, replacing any previous
// entry. A nil payload is stored as an empty list.
func (s *Store[T]) Save(payload []T) {
	if payload == nil {
		payload = []T{}
	}
	data, err := json.Marshal(Entry[T]{Payload: payload, FetchedAt: s.now()})
	if err != nil {
		s.log.Error("cache: encode failed", err, "key", s.key)
		return
	}
	if err := s.medium.Set(s.key, string(data)); err != nil {
		s.log.Error("cache: write failed", err, "key", s.key)
	}
}

// Invalidate removes the entry unconditionally.
func (s *Store[T]) Invalidate() {
	s.erase()
}

func (s *Store[T]) erase() {
	if err := s.medium.Remove(s.key); err != nil {
		s.log.Error("cache: remove failed", err, "key", s.key)
	}
}
