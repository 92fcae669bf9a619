// Package report is the diagnostic channel for recoverable errors. Errors
// reported here have already been handled; they are only recorded.
package report

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"gamecal/internal/log"
)

// Reporter records a recoverable error with optional tags.
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

type Options struct {
	// SentryDSN enables Sentry delivery when non-empty.
	SentryDSN   string
	Environment string
	Release     string
}

// Channel logs every error and forwards it to Sentry when enabled.
type Channel struct {
	log    *log.Logger
	sentry bool
}

// New initialises the Sentry client when a DSN is configured.
func New(logger *log.Logger, opts Options) (*Channel, error) {
	c := &Channel{log: logger}
	if opts.SentryDSN == "" {
		return c, nil
	}

	//nolint:exhaustruct //other fields are optional
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.SentryDSN,
		Environment: opts.Environment,
		Release:     opts.Release,
	})
	if err != nil {
		return nil, err
	}
	c.sentry = true
	return c, nil
}

// Enabled reports whether errors also go to Sentry.
func (c *Channel) Enabled() bool {
	return c != nil && c.sentry
}

func (c *Channel) Report(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}

	kv := make([]any, 0, len(tags)*2)
	for k, v := range tags {
		kv = append(kv, k, v)
	}
	c.logger().Error("recoverable error", err, kv...)

	if !c.Enabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// Flush waits for queued Sentry events, up to timeout.
func (c *Channel) Flush(timeout time.Duration) {
	if c.Enabled() {
		sentry.Flush(timeout)
	}
}

func (c *Channel) logger() *log.Logger {
	if c == nil {
		return nil
	}
	return c.log
}

// Func adapts a function to Reporter.
type Func func(ctx context.Context, err error, tags map[string]string)

func (f Func) Report(ctx context.Context, err error, tags map[string]string) {
	f(ctx, err, tags)
}
