// Package source fetches the authoritative record list and reconciles it
// with the local cache.
package source

import (
	"context"
	"errors"

	"gamecal/internal/model"
)

var (
	// ErrNotConfigured means the source has no endpoint or credentials.
	// Callers serve an empty list instead of the fallback.
	ErrNotConfigured = errors.New("source: not configured")

	// ErrStatus wraps non-2xx responses from a remote source.
	ErrStatus = errors.New("source: unexpected status")
)

// Fetcher retrieves the full record list from one remote source. It returns
// an error for any transport, status or decoding failure; it never returns
// a partial list.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Record, error)
}

// Static serves a fixed list.
type Static struct {
	Records []model.Record
}

func (s Static) Fetch(context.Context) ([]model.Record, error) {
	out := make([]model.Record, len(s.Records))
	copy(out, s.Records)
	return out, nil
}

// Unconfigured is the Fetcher used when no source is set up.
type Unconfigured struct{}

func (Unconfigured) Fetch(context.Context) ([]model.Record, error) {
	return nil, ErrNotConfigured
}

// DefaultFallback is served when the remote source fails.
func DefaultFallback() []model.Record {
	return []model.Record{
		{
			Name:        "Steam Racing Fest",
			Show:        model.Bool(true),
			Description: "Fallback event description",
			Link:        "https://store.steampowered.com/",
		},
		{
			Name:        "Steam 4X Fest",
			Show:        model.Bool(true),
			Description: "Fallback event description",
			Link:        "https://store.steampowered.com/",
		},
	}
}
