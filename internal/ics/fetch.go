package ics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gamecal/internal/log"
	"gamecal/internal/store"
)

// Source is one subscribed ICS calendar.
type Source struct {
	ID   string
	Name string
	URL  string
}

// FetchResult is the body of one source, fresh or reused from the cache.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

// validators are the HTTP cache validators remembered per URL.
type validators struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads ICS feeds with conditional requests. The last good body
// of every URL is kept in a store.Medium and served when the remote side is
// unreachable or answers with an error.
type Fetcher struct {
	client *http.Client
	cache  store.Medium
	log    *log.Logger
}

// NewFetcher builds a Fetcher. A nil cache means bodies are kept in memory.
func NewFetcher(cache store.Medium, logger *log.Logger) *Fetcher {
	if cache == nil {
		cache = store.NewMemory()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache: cache,
		log:   logger,
	}
}

// FetchAll fetches every source. Failing sources are logged and returned as
// errors; the results only hold sources that produced a body.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	var errs []error

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("ics source %s: %w", src.ID, err))
			f.log.Error("ics fetch failed", err, "id", src.ID, "url", log.RedactURL(src.URL))
			continue
		}
		results = append(results, res)
	}

	return results, errs
}

// FetchOne fetches a single source, honouring ETag and Last-Modified.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	meta := f.loadValidators(src.URL)
	cached := f.loadBody(src.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	f.log.Debug("ics fetch start", "id", src.ID, "url", log.RedactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			f.log.Error("ics fetch network error, using cached body", err, "id", src.ID, "url", log.RedactURL(src.URL))
			return FetchResult{Source: src, Body: cached, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, err
		}

		f.save(src.URL, validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}, body)

		f.log.Info("ics fetch success", "id", src.ID, "url", log.RedactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		f.log.Debug("ics fetch not modified; using cache", "id", src.ID)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	default:
		if len(cached) > 0 {
			f.log.Error("ics fetch non-OK, using cached body", errors.New(resp.Status),
				"id", src.ID, "url", log.RedactURL(src.URL), "status", resp.StatusCode)
			return FetchResult{Source: src, Body: cached, FromCache: true}, nil
		}
		return FetchResult{}, errors.New(resp.Status)
	}
}

func (f *Fetcher) loadValidators(url string) validators {
	var v validators
	raw, ok, err := f.cache.Get("ics:meta:" + url)
	if err != nil || !ok {
		return v
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return validators{}
	}
	return v
}

func (f *Fetcher) loadBody(url string) []byte {
	raw, ok, err := f.cache.Get("ics:body:" + url)
	if err != nil || !ok {
		return nil
	}
	return []byte(raw)
}

func (f *Fetcher) save(url string, v validators, body []byte) {
	// Body first so validators never describe a body we do not have.
	if err := f.cache.Set("ics:body:"+url, string(body)); err != nil {
		f.log.Error("ics cache save failed", err, "url", log.RedactURL(url))
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := f.cache.Set("ics:meta:"+url, string(data)); err != nil {
		f.log.Error("ics cache save failed", err, "url", log.RedactURL(url))
	}
}
