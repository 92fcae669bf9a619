package source

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gamecal/internal/cache"
	"gamecal/internal/log"
	"gamecal/internal/model"
	"gamecal/internal/notify"
	"gamecal/internal/report"
)

// Origin says where the current record list came from.
type Origin string

const (
	OriginNone     Origin = ""
	OriginCache    Origin = "cache"
	OriginRemote   Origin = "remote"
	OriginFallback Origin = "fallback"
	OriginEmpty    Origin = "unconfigured"
)

type Options struct {
	Fetcher  Fetcher
	Cache    *cache.Store[model.Record]
	Fallback []model.Record
	Notifier notify.Notifier
	Reporter report.Reporter
	Log      *log.Logger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Status is a snapshot of the reconciler state.
type Status struct {
	Loading    bool      `json:"loading"`
	Generation uint64    `json:"generation"`
	Count      int       `json:"count"`
	Origin     Origin    `json:"origin"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
	LastError  string    `json:"last_error,omitempty"`
}

// Reconciler owns the current authoritative list. It may be called from the
// startup load, the refresh schedule and HTTP handlers at the same time;
// fetches are not serialized and the last one to finish wins.
type Reconciler struct {
	fetcher  Fetcher
	cache    *cache.Store[model.Record]
	fallback []model.Record
	notifier notify.Notifier
	reporter report.Reporter
	log      *log.Logger
	now      func() time.Time

	mu        sync.RWMutex
	records   []model.Record
	loading   bool
	gen       uint64
	origin    Origin
	updatedAt time.Time
	lastErr   error

	warnedUnconfigured atomic.Bool
}

func New(opts Options) *Reconciler {
	if opts.Fetcher == nil {
		opts.Fetcher = Unconfigured{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{
		fetcher:  opts.Fetcher,
		cache:    opts.Cache,
		fallback: opts.Fallback,
		notifier: opts.Notifier,
		reporter: opts.Reporter,
		log:      opts.Log,
		now:      opts.Now,
		records:  []model.Record{},
		loading:  true,
	}
}

// Get returns the authoritative list. Without force a valid cache entry is
// served without touching the network. With force, or on a miss, the cache
// is cleared and the fetcher consulted; a failed fetch yields the fallback
// list, which is never cached. Get never fails.
func (r *Reconciler) Get(ctx context.Context, force bool) []model.Record {
	if !force && r.cache != nil {
		if e, ok := r.cache.Load(); ok {
			r.log.Debug("records served from cache", "count", len(e.Payload), "fetched_at", e.FetchedAt)
			return r.publish(e.Payload, OriginCache, nil)
		}
	}

	if r.cache != nil {
		r.cache.Invalidate()
	}

	fetched, err := r.fetcher.Fetch(ctx)
	switch {
	case errors.Is(err, ErrNotConfigured):
		if !r.warnedUnconfigured.Swap(true) {
			r.log.Warn("record source not configured; serving an empty list")
		}
		return r.publish([]model.Record{}, OriginEmpty, err)

	case err != nil:
		if r.reporter != nil {
			r.reporter.Report(ctx, err, map[string]string{"component": "source"})
		} else {
			r.log.Error("record fetch failed", err)
		}
		r.log.Info("serving fallback records", "count", len(r.fallback))
		return r.publish(clone(r.fallback), OriginFallback, err)
	}

	visible := make([]model.Record, 0, len(fetched))
	for _, rec := range fetched {
		if rec.Visible() {
			visible = append(visible, rec)
		}
	}

	if r.cache != nil {
		r.cache.Save(visible)
	}
	return r.publish(visible, OriginRemote, nil)
}

// publish replaces the whole list and tells subscribers.
func (r *Reconciler) publish(records []model.Record, origin Origin, err error) []model.Record {
	r.mu.Lock()
	r.records = records
	r.loading = false
	r.gen++
	r.origin = origin
	r.updatedAt = r.now()
	r.lastErr = err
	r.mu.Unlock()

	r.notifier.NotifyDataChanged("records")
	return clone(records)
}

// Records returns a copy of the current list.
func (r *Reconciler) Records() []model.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.records)
}

// Loading is true until the first Get completes.
func (r *Reconciler) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// Generation increases every time the list is replaced.
func (r *Reconciler) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

func (r *Reconciler) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Status{
		Loading:    r.loading,
		Generation: r.gen,
		Count:      len(r.records),
		Origin:     r.origin,
		UpdatedAt:  r.updatedAt,
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

func clone(in []model.Record) []model.Record {
	out := make([]model.Record, len(in))
	copy(out, in)
	return out
}
